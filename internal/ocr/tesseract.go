package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/grovecrm/cardscan/internal/score"
)

// Tesseract adapts the gosseract client as the primary engine. A fresh
// client is created per call; the library is not safe for concurrent reuse
// of one client and setup cost is negligible next to recognition itself.
type Tesseract struct {
	logger *slog.Logger

	// thresholds for the word-reconstruction mode
	wordConfidenceKeep float64
	lineConfidenceKeep float64
}

// NewTesseract creates the primary engine adapter.
func NewTesseract(wordKeep, lineKeep float64, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{
		logger:             logger.With("engine", "tesseract"),
		wordConfidenceKeep: wordKeep,
		lineConfidenceKeep: lineKeep,
	}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Available reports whether the native library responds. gosseract links
// libtesseract at build time, so a constructed client is sufficient proof.
func (t *Tesseract) Available() bool {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version() != ""
}

func (t *Tesseract) configure(client *gosseract.Client, opts Options) error {
	if opts.Languages != "" {
		if err := client.SetLanguage(strings.Split(opts.Languages, "+")...); err != nil {
			return fmt.Errorf("set language: %w", err)
		}
	}
	if opts.PSM != 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PSM)); err != nil {
			return fmt.Errorf("set psm: %w", err)
		}
	}
	if opts.DPI != 0 {
		if err := client.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(opts.DPI)); err != nil {
			return fmt.Errorf("set dpi: %w", err)
		}
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			return fmt.Errorf("set whitelist: %w", err)
		}
	}
	if opts.PreserveSpaces {
		if err := client.SetVariable(gosseract.SettableVariable("preserve_interword_spaces"), "1"); err != nil {
			return fmt.Errorf("set preserve spaces: %w", err)
		}
	}
	return nil
}

// Recognize runs a plain text read with the given options.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := encodePNG(img)
	if err != nil {
		return "", fmt.Errorf("encoding image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := t.configure(client, opts); err != nil {
		return "", err
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return score.CleanText(text), nil
}

// RecognizeWords runs the confidence-weighted mode: words are read with
// per-word confidence, grouped back into lines by block/paragraph/line
// indexes, and a line survives if it looks linguistically plausible or its
// average confidence clears the keep threshold. Returns the reconstructed
// text and the mean confidence of the surviving lines.
func (t *Tesseract) RecognizeWords(ctx context.Context, img image.Image, opts Options) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	data, err := encodePNG(img)
	if err != nil {
		return "", 0, fmt.Errorf("encoding image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := t.configure(client, opts); err != nil {
		return "", 0, err
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", 0, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		return "", 0, fmt.Errorf("word boxes: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		w := strings.TrimSpace(b.Word)
		if w == "" || b.Confidence < t.wordConfidenceKeep {
			continue
		}
		words = append(words, Word{
			Text:       w,
			Confidence: b.Confidence,
			Block:      b.BlockNum,
			Paragraph:  b.ParNum,
			Line:       b.LineNum,
		})
	}
	text, conf := t.reconstructLines(words)
	return text, conf, nil
}

type lineKey struct{ block, par, line int }

// reconstructLines groups confident words back into reading-order lines.
func (t *Tesseract) reconstructLines(words []Word) (string, float64) {
	if len(words) == 0 {
		return "", 0
	}
	grouped := make(map[lineKey][]Word)
	for _, w := range words {
		k := lineKey{w.Block, w.Paragraph, w.Line}
		grouped[k] = append(grouped[k], w)
	}
	keys := make([]lineKey, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.block != b.block {
			return a.block < b.block
		}
		if a.par != b.par {
			return a.par < b.par
		}
		return a.line < b.line
	})

	var lines []string
	var confidences []float64
	for _, k := range keys {
		ws := grouped[k]
		parts := make([]string, len(ws))
		sum := 0.0
		for i, w := range ws {
			parts[i] = w.Text
			sum += w.Confidence
		}
		line := score.CleanText(strings.Join(parts, " "))
		if line == "" {
			continue
		}
		avg := sum / float64(len(ws))
		if !score.LineValid(line) && avg < t.lineConfidenceKeep {
			continue
		}
		lines = append(lines, line)
		confidences = append(confidences, avg)
	}
	if len(lines) == 0 {
		return "", 0
	}
	total := 0.0
	for _, c := range confidences {
		total += c
	}
	return strings.Join(lines, "\n"), total / float64(len(confidences))
}
