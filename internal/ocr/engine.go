// Package ocr provides the recognition engines behind the scan loop: a
// structured primary engine plus two neural fallbacks with different
// strengths. Every adapter traps its own failures so the caller can treat
// any error as "no text produced" and continue.
package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"
)

// Options tunes a single primary-engine read.
type Options struct {
	// PSM selects the page segmentation mode, e.g. 6 for a uniform block
	// of text or 11 for sparse text.
	PSM int

	// Whitelist restricts recognized characters when non-empty.
	Whitelist string

	// DPI hint for layout analysis.
	DPI int

	// Languages in engine notation, e.g. "eng".
	Languages string

	// PreserveSpaces keeps inter-word spacing in the output.
	PreserveSpaces bool
}

// Engine is a text recognizer. Recognize returns the recognized text,
// possibly empty; an error means the attempt produced nothing usable.
type Engine interface {
	Name() string
	Available() bool
	Recognize(ctx context.Context, img image.Image, opts Options) (string, error)
}

// Word is a single recognized word with position and confidence, used by the
// primary engine's confidence-weighted mode.
type Word struct {
	Text       string
	Confidence float64
	Block      int
	Paragraph  int
	Line       int
}

// Line is a recognized text span with its bounding box, produced by the
// detection-based neural engine.
type Line struct {
	Box        image.Rectangle
	Text       string
	Confidence float64
}

// CharWhitelist is the default character set for whitelisted reads.
const CharWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789@._-()/: "

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
