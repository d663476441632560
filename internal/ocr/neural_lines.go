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

// NeuralLines is the first neural fallback: whole-image line recognition
// with paragraph grouping. The model session is created once per process on
// first use; a failed initialization is cached so later calls fail fast.
type NeuralLines struct {
	modelPath string
	dictPath  string
	threads   int
	logger    *slog.Logger

	once    sync.Once
	session *onnxSession
	dict    []string
	initErr error
}

// NewNeuralLines creates the engine without loading the model.
func NewNeuralLines(modelPath, dictPath string, threads int, logger *slog.Logger) *NeuralLines {
	if logger == nil {
		logger = slog.Default()
	}
	return &NeuralLines{
		modelPath: modelPath,
		dictPath:  dictPath,
		threads:   threads,
		logger:    logger.With("engine", "neural_lines"),
	}
}

func (e *NeuralLines) Name() string { return "neural_lines" }

func (e *NeuralLines) init() {
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
func (e *NeuralLines) Available() bool {
	e.once.Do(e.init)
	return e.initErr == nil
}

// Recognize segments the image into text lines, recognizes each and joins
// the results with blank lines between paragraph groups. Options are
// ignored; the model has no tunables at call time.
func (e *NeuralLines) Recognize(ctx context.Context, img image.Image, _ Options) (string, error) {
	e.once.Do(e.init)
	if e.initErr != nil {
		return "", fmt.Errorf("neural_lines unavailable: %w", e.initErr)
	}

	boxes := segmentLines(img)
	if len(boxes) == 0 {
		return "", nil
	}

	var paragraphs []string
	for _, group := range groupParagraphs(boxes) {
		var lines []string
		for _, box := range group {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			text, _, err := e.recognizeStrip(img, box)
			if err != nil {
				e.logger.Debug("line recognition failed", "error", err)
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				lines = append(lines, text)
			}
		}
		if len(lines) > 0 {
			paragraphs = append(paragraphs, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

func (e *NeuralLines) recognizeStrip(img image.Image, box image.Rectangle) (string, float64, error) {
	data, h, w := prepareStrip(cropRect(img, box))
	out, shape, err := e.session.run(data, 3, h, w)
	mempool.Put(data)
	if err != nil {
		return "", 0, err
	}
	if len(shape) != 3 {
		return "", 0, fmt.Errorf("unexpected output rank %d", len(shape))
	}
	steps, classes := int(shape[1]), int(shape[2])
	text, conf := ctcGreedyDecode(out, steps, classes, e.dict)
	return text, conf, nil
}

// Close releases the model session.
func (e *NeuralLines) Close() {
	if e.session != nil {
		e.session.close()
		e.session = nil
	}
}
