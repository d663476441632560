// Package scanner wires the full card scanning pipeline behind a single
// entry point: decode and normalize the upload, run the recognition loop,
// and parse the winning text into a contact record.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/grovecrm/cardscan/internal/config"
	"github.com/grovecrm/cardscan/internal/contact"
	"github.com/grovecrm/cardscan/internal/normalize"
	"github.com/grovecrm/cardscan/internal/ocr"
	"github.com/grovecrm/cardscan/internal/orchestrate"
	"github.com/grovecrm/cardscan/internal/variants"
)

// Result is the outcome of one scan.
type Result struct {
	Success bool            `json:"success"`
	Contact *contact.Record `json:"contact,omitempty"`
	RawText string          `json:"raw_text,omitempty"`
	Score   float64         `json:"score"`
	Err     string          `json:"error,omitempty"`
}

// Scanner owns the pipeline components. Safe for concurrent use; the
// neural engines initialize lazily on first use.
type Scanner struct {
	cfg        *config.Config
	normalizer *normalize.Normalizer
	orch       *orchestrate.Orchestrator
	logger     *slog.Logger
}

// New builds a scanner from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	th := cfg.Thresholds
	primary := ocr.NewTesseract(th.WordConfidenceKeep, th.LineConfidenceKeep, logger)
	lines := ocr.NewNeuralLines(
		cfg.ResolveModelPath(cfg.OCR.LinesModelPath),
		cfg.ResolveModelPath(cfg.OCR.DictPath),
		cfg.OCR.NumThreads, logger)
	boxes := ocr.NewNeuralBoxes(
		cfg.ResolveModelPath(cfg.OCR.BoxesModelPath),
		cfg.ResolveModelPath(cfg.OCR.DictPath),
		cfg.OCR.NumThreads, th.BoxConfidenceFloor, logger)

	ncfg := cfg.Normalize
	ncfg.OrientationModelPath = cfg.ResolveModelPath(ncfg.OrientationModelPath)

	return &Scanner{
		cfg:        cfg,
		normalizer: normalize.New(ncfg, logger),
		orch: orchestrate.New(primary, lines, boxes,
			variants.NewGenerator(logger), cfg.OCR, th, logger),
		logger: logger.With("component", "scanner"),
	}
}

// Scan processes raw upload bytes end to end. Only undecodable input
// produces a failed result; weak recognition still returns a best-effort
// record.
func (s *Scanner) Scan(ctx context.Context, raw []byte) Result {
	return s.ScanWithProgress(ctx, raw, nil)
}

// ScanWithProgress is Scan with stage callbacks for progress streaming.
func (s *Scanner) ScanWithProgress(ctx context.Context, raw []byte, progress orchestrate.ProgressFunc) Result {
	img, err := s.decode(raw)
	if err != nil {
		s.logger.Warn("scan rejected", "error", err)
		return Result{Err: err.Error()}
	}

	prepared := s.normalizer.Prepare(img)
	run := s.orch.Run(ctx, prepared, progress)

	rec := contact.Validate(contact.Extract(run.Text))
	res := Result{
		Success: !rec.IsEmpty(),
		RawText: run.Text,
		Score:   run.Score,
	}
	if !rec.IsEmpty() {
		res.Contact = &rec
	}
	return res
}

// decode turns the upload into an image, routing PDFs through page-image
// extraction.
func (s *Scanner) decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, normalize.ErrEmptyImage
	}
	if IsPDF(raw) {
		img, err := extractPDFImage(raw)
		if err != nil {
			return nil, fmt.Errorf("pdf input: %w", err)
		}
		return img, nil
	}
	img, err := normalize.Decode(raw)
	if err != nil {
		if errors.Is(err, normalize.ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("decoding upload: %w", err)
	}
	return img, nil
}
