package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"github.com/grovecrm/cardscan/internal/mempool"
)

// NeuralBoxes is the second neural fallback: detection plus recognition
// returning (box, text, confidence) triples. Lines below the confidence
// floor are discarded. Uses the heavier recognition model, so it is tried
// after NeuralLines.
type NeuralBoxes struct {
	modelPath       string
	dictPath        string
	threads         int
	confidenceFloor float64
	logger          *slog.Logger

	once    sync.Once
	session *onnxSession
	dict    []string
	initErr error
}

// NewNeuralBoxes creates the engine without loading the model.
func NewNeuralBoxes(modelPath, dictPath string, threads int, confidenceFloor float64, logger *slog.Logger) *NeuralBoxes {
	if logger == nil {
		logger = slog.Default()
	}
	return &NeuralBoxes{
		modelPath:       modelPath,
		dictPath:        dictPath,
		threads:         threads,
		confidenceFloor: confidenceFloor,
		logger:          logger.With("engine", "neural_boxes"),
	}
}

func (e *NeuralBoxes) Name() string { return "neural_boxes" }

func (e *NeuralBoxes) init() {
	e.session, e.initErr = newONNXSession(e.modelPath, e.threads)
	if e.initErr != nil {
		e.logger.Warn("engine unavailable", "error", e.initErr)
		return
	}
	e.dict, e.initErr = loadDict(e.dictPath)
	if e.initErr != nil {
		e.session.close()
		e.session = nil
		e.logger.Warn("engine unavailable", "error", e.initErr)
	}
}

// Available reports whether the model loads. Triggers lazy initialization.
func (e *NeuralBoxes) Available() bool {
	e.once.Do(e.init)
	return e.initErr == nil
}

// Lines detects text regions and recognizes each, dropping results under
// the confidence floor.
func (e *NeuralBoxes) Lines(ctx context.Context, img image.Image) ([]Line, error) {
	e.once.Do(e.init)
	if e.initErr != nil {
		return nil, fmt.Errorf("neural_boxes unavailable: %w", e.initErr)
	}

	var lines []Line
	for _, box := range segmentLines(img) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, h, w := prepareStrip(cropRect(img, box))
		out, shape, err := e.session.run(data, 3, h, w)
		mempool.Put(data)
		if err != nil {
			e.logger.Debug("box recognition failed", "error", err)
			continue
		}
		if len(shape) != 3 {
			continue
		}
		text, conf := ctcGreedyDecode(out, int(shape[1]), int(shape[2]), e.dict)
		text = strings.TrimSpace(text)
		if text == "" || conf < e.confidenceFloor {
			continue
		}
		lines = append(lines, Line{Box: box, Text: text, Confidence: conf})
	}
	return lines, nil
}

// Recognize joins the surviving detected lines in reading order.
func (e *NeuralBoxes) Recognize(ctx context.Context, img image.Image, _ Options) (string, error) {
	lines, err := e.Lines(ctx, img)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, "\n"), nil
}

// Close releases the model session.
func (e *NeuralBoxes) Close() {
	if e.session != nil {
		e.session.close()
		e.session = nil
	}
}
