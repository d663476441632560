package normalize

import (
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/grovecrm/cardscan/internal/config"
)

// Normalizer prepares raw uploads for recognition.
type Normalizer struct {
	cfg        config.NormalizeConfig
	classifier *OrientationClassifier
	logger     *slog.Logger
}

// New creates a Normalizer with the given settings. When an orientation
// model path is configured, a lazy ONNX classifier replaces the transition
// heuristic; the heuristic remains the fallback when the model cannot load.
func New(cfg config.NormalizeConfig, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{cfg: cfg, logger: logger.With("component", "normalize")}
	if cfg.OrientationModelPath != "" {
		n.classifier = NewOrientationClassifier(cfg.OrientationModelPath, cfg.OrientationConfidence, 0)
	}
	return n
}

// Normalize decodes raw bytes and applies the full preparation chain:
// card isolation, coarse orientation correction and resampling into the
// working width band. Failures after decode degrade gracefully to the
// less-processed image; only undecodable input returns an error.
func (n *Normalizer) Normalize(data []byte) (image.Image, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return n.Prepare(img), nil
}

// Prepare runs the post-decode chain on an already decoded image.
func (n *Normalizer) Prepare(img image.Image) image.Image {
	if n.cfg.CardCrop {
		cropped := CardCrop(img, n.cfg.MinCardAreaRatio, n.cfg.BorderPx)
		if cropped != img {
			n.logger.Debug("card contour isolated",
				"width", cropped.Bounds().Dx(), "height", cropped.Bounds().Dy())
		}
		img = cropped
	}

	if deg := n.detectRotation(img); deg != 0 {
		n.logger.Debug("rotating image", "degrees", deg)
		img = ApplyRotation(img, deg)
	}

	return n.ResizeToBand(img)
}

// detectRotation prefers the ONNX classifier and degrades to the
// transition-count heuristic when the model is missing or fails.
func (n *Normalizer) detectRotation(img image.Image) int {
	if n.classifier != nil {
		deg, conf, err := n.classifier.Predict(img)
		if err == nil {
			n.logger.Debug("orientation classified", "degrees", deg, "confidence", conf)
			return deg
		}
		n.logger.Debug("orientation model unavailable, using heuristic", "error", err)
	}
	return DetectRotation(img)
}

// ResizeToBand resamples the image so its width lies in [MinWidth, MaxWidth],
// preserving aspect ratio. Images already inside the band pass through.
func (n *Normalizer) ResizeToBand(img image.Image) image.Image {
	w := img.Bounds().Dx()
	switch {
	case w < n.cfg.MinWidth:
		return imaging.Resize(img, n.cfg.MinWidth, 0, imaging.Lanczos)
	case w > n.cfg.MaxWidth:
		return imaging.Resize(img, n.cfg.MaxWidth, 0, imaging.Lanczos)
	default:
		return img
	}
}
