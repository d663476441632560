package normalize

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	onnxrt "github.com/yalue/onnxruntime_go"
)

// orientationAngles maps classifier output indices to clockwise degrees.
var orientationAngles = [4]int{0, 90, 180, 270}

// OrientationClassifier predicts document rotation with an ONNX
// classification model. The session is created once on first use; a failed
// initialization is cached so callers fall back to the heuristic cheaply.
type OrientationClassifier struct {
	modelPath  string
	confidence float64
	threads    int

	once     sync.Once
	sess     *onnxrt.DynamicAdvancedSession
	inName   string
	outName  string
	inH, inW int
	initErr  error
}

// NewOrientationClassifier prepares a lazy classifier for the given model.
func NewOrientationClassifier(modelPath string, confidence float64, threads int) *OrientationClassifier {
	if confidence <= 0 {
		confidence = 0.7
	}
	return &OrientationClassifier{modelPath: modelPath, confidence: confidence, threads: threads}
}

func (c *OrientationClassifier) init() error {
	c.once.Do(func() { c.initErr = c.load() })
	return c.initErr
}

func (c *OrientationClassifier) load() error {
	if c.modelPath == "" {
		return errors.New("no orientation model configured")
	}
	if _, err := os.Stat(c.modelPath); err != nil {
		return fmt.Errorf("orientation model not found: %w", err)
	}
	if err := setOrientONNXLibraryPath(); err != nil {
		return err
	}
	if !onnxrt.IsInitialized() {
		if err := onnxrt.InitializeEnvironment(); err != nil {
			return fmt.Errorf("init onnx: %w", err)
		}
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(c.modelPath)
	if err != nil {
		return fmt.Errorf("io info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return fmt.Errorf("unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]
	if len(in.Dimensions) != 4 {
		return fmt.Errorf("expected 4D input, got %dD", len(in.Dimensions))
	}
	c.inName, c.outName = in.Name, out.Name
	c.inH, c.inW = 192, 192
	if h := in.Dimensions[2]; h > 0 {
		c.inH = int(h)
	}
	if w := in.Dimensions[3]; w > 0 {
		c.inW = int(w)
	}

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("session opts: %w", err)
	}
	defer func() { _ = opts.Destroy() }()
	if c.threads > 0 {
		_ = opts.SetIntraOpNumThreads(c.threads)
	}

	sess, err := onnxrt.NewDynamicAdvancedSession(c.modelPath, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	c.sess = sess
	return nil
}

// Predict returns the clockwise rotation needed to upright the image. A
// prediction below the confidence threshold returns 0.
func (c *OrientationClassifier) Predict(img image.Image) (int, float64, error) {
	if img == nil {
		return 0, 0, errors.New("nil image")
	}
	if err := c.init(); err != nil {
		return 0, 0, err
	}

	resized := imaging.Resize(img, c.inW, c.inH, imaging.Lanczos)
	data := make([]float32, 3*c.inH*c.inW)
	for y := range c.inH {
		for x := range c.inW {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[0*c.inH*c.inW+y*c.inW+x] = float32(r>>8) / 255
			data[1*c.inH*c.inW+y*c.inW+x] = float32(g>>8) / 255
			data[2*c.inH*c.inW+y*c.inW+x] = float32(b>>8) / 255
		}
	}

	input, err := onnxrt.NewTensor(onnxrt.NewShape(1, 3, int64(c.inH), int64(c.inW)), data)
	if err != nil {
		return 0, 0, fmt.Errorf("input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outs := []onnxrt.Value{nil}
	if err := c.sess.Run([]onnxrt.Value{input}, outs); err != nil {
		return 0, 0, fmt.Errorf("inference: %w", err)
	}
	tensor, ok := outs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return 0, 0, fmt.Errorf("unexpected output type %T", outs[0])
	}
	defer func() { _ = tensor.Destroy() }()

	logits := tensor.GetData()
	if len(logits) < 4 {
		return 0, 0, fmt.Errorf("unexpected output length %d", len(logits))
	}
	angle, conf := rotationFromLogits(logits[:4])
	if conf < c.confidence {
		return 0, conf, nil
	}
	return angle, conf, nil
}

// Close releases the model session.
func (c *OrientationClassifier) Close() {
	if c.sess != nil {
		_ = c.sess.Destroy()
		c.sess = nil
	}
}

// rotationFromLogits softmaxes four class logits and returns the winning
// angle with its probability.
func rotationFromLogits(logits []float32) (int, float64) {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}
	var sum float64
	probs := make([]float64, len(logits))
	for i, l := range logits {
		probs[i] = math.Exp(float64(l - maxLogit))
		sum += probs[i]
	}
	best, bestProb := 0, 0.0
	for i, p := range probs {
		p /= sum
		if p > bestProb {
			best, bestProb = i, p
		}
	}
	return orientationAngles[best], bestProb
}

func setOrientONNXLibraryPath() error {
	if path := os.Getenv("ONNXRUNTIME_LIB_PATH"); path != "" {
		onnxrt.SetSharedLibraryPath(path)
		return nil
	}
	for _, path := range []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	} {
		if _, err := os.Stat(path); err == nil {
			onnxrt.SetSharedLibraryPath(path)
			return nil
		}
	}
	return errors.New("onnxruntime shared library not found; set ONNXRUNTIME_LIB_PATH")
}
