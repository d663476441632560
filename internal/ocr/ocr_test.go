package ocr

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCTCGreedyDecode(t *testing.T) {
	dict := []string{"a", "b", "c"}
	// T=5, C=4 (blank + 3 chars). Sequence: a a blank b b -> "ab".
	logits := []float32{
		0, 9, 0, 0,
		0, 9, 0, 0,
		9, 0, 0, 0,
		0, 0, 9, 0,
		0, 0, 9, 0,
	}
	text, conf := ctcGreedyDecode(logits, 5, 4, dict)
	assert.Equal(t, "ab", text)
	assert.Greater(t, conf, 0.9)
}

func TestCTCGreedyDecode_RepeatAcrossBlank(t *testing.T) {
	dict := []string{"a"}
	// a blank a -> "aa"
	logits := []float32{
		0, 9,
		9, 0,
		0, 9,
	}
	text, _ := ctcGreedyDecode(logits, 3, 2, dict)
	assert.Equal(t, "aa", text)
}

func TestCTCGreedyDecode_Empty(t *testing.T) {
	text, conf := ctcGreedyDecode(nil, 0, 0, nil)
	assert.Empty(t, text)
	assert.Zero(t, conf)
}

func TestLoadDict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n\nc\n"), 0o600))

	dict, err := loadDict(path)
	require.NoError(t, err)
	// The empty line maps to a space entry.
	assert.Equal(t, []string{"a", "b", " ", "c"}, dict)
}

func TestLoadDict_Missing(t *testing.T) {
	_, err := loadDict("/nonexistent/dict.txt")
	assert.Error(t, err)
}

// textImage paints dark horizontal bars on white, one per "line".
func textImage(lineYs []int) image.Image {
	img := imaging.New(200, 120, color.White)
	bar := imaging.New(120, 10, color.Black)
	for _, y := range lineYs {
		img = imaging.Paste(img, bar, image.Pt(20, y))
	}
	return img
}

func TestSegmentLines(t *testing.T) {
	boxes := segmentLines(textImage([]int{10, 40, 70}))
	require.Len(t, boxes, 3)
	for _, b := range boxes {
		assert.GreaterOrEqual(t, b.Dy(), 4)
		assert.Greater(t, b.Dx(), 100)
	}
	// Reading order top to bottom.
	assert.Less(t, boxes[0].Min.Y, boxes[1].Min.Y)
	assert.Less(t, boxes[1].Min.Y, boxes[2].Min.Y)
}

func TestSegmentLines_Blank(t *testing.T) {
	assert.Empty(t, segmentLines(imaging.New(100, 60, color.White)))
}

func TestGroupParagraphs(t *testing.T) {
	boxes := []image.Rectangle{
		image.Rect(0, 0, 100, 10),
		image.Rect(0, 14, 100, 24),
		// Big gap: new paragraph.
		image.Rect(0, 70, 100, 80),
	}
	groups := groupParagraphs(boxes)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 1)
}

func TestPrepareStrip(t *testing.T) {
	data, h, w := prepareStrip(imaging.New(100, 20, color.White))
	assert.Equal(t, recognizerInputHeight, h)
	assert.Equal(t, 3*h*w, len(data))
	// White normalizes to ~1.
	assert.InDelta(t, 1.0, float64(data[0]), 0.02)
}

func TestNeuralEngines_UnavailableWithoutModels(t *testing.T) {
	lines := NewNeuralLines("/nonexistent/model.onnx", "/nonexistent/dict.txt", 0, nil)
	assert.False(t, lines.Available())
	_, err := lines.Recognize(t.Context(), textImage([]int{10}), Options{})
	assert.Error(t, err)

	boxes := NewNeuralBoxes("/nonexistent/model.onnx", "/nonexistent/dict.txt", 0, 0.45, nil)
	assert.False(t, boxes.Available())
	_, err = boxes.Recognize(t.Context(), textImage([]int{10}), Options{})
	assert.Error(t, err)
}

func TestTesseract_ReconstructLines(t *testing.T) {
	eng := NewTesseract(55, 70, nil)
	words := []Word{
		{Text: "Jane", Confidence: 90, Block: 1, Paragraph: 1, Line: 1},
		{Text: "Doe", Confidence: 88, Block: 1, Paragraph: 1, Line: 1},
		{Text: "Manager", Confidence: 80, Block: 1, Paragraph: 1, Line: 2},
		// Low-confidence noise line that also fails validity.
		{Text: "x7#", Confidence: 40, Block: 1, Paragraph: 2, Line: 1},
	}
	text, conf := eng.reconstructLines(words)
	assert.Equal(t, "Jane Doe\nManager", text)
	assert.InDelta(t, (89.0+80.0)/2, conf, 0.5)
}

func TestTesseract_ReconstructLines_ConfidenceRescue(t *testing.T) {
	eng := NewTesseract(55, 70, nil)
	// "ZX9" fails the linguistic check but high confidence keeps it.
	words := []Word{
		{Text: "ZX9", Confidence: 95, Block: 1, Paragraph: 1, Line: 1},
	}
	text, _ := eng.reconstructLines(words)
	assert.Equal(t, "ZX9", text)
}

func TestTesseract_ReconstructLines_Empty(t *testing.T) {
	eng := NewTesseract(55, 70, nil)
	text, conf := eng.reconstructLines(nil)
	assert.Empty(t, text)
	assert.Zero(t, conf)
}
