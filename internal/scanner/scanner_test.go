package scanner

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovecrm/cardscan/internal/config"
	"github.com/grovecrm/cardscan/internal/normalize"
)

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7\n...")))
	assert.False(t, IsPDF([]byte("\x89PNG\r\n")))
	assert.False(t, IsPDF(nil))
}

func TestParsePageFromFilename(t *testing.T) {
	n, err := parsePageFromFilename("page_3_image_1.png")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = parsePageFromFilename("thumbnail.png")
	assert.Error(t, err)

	_, err = parsePageFromFilename("page_x_image_1.png")
	assert.Error(t, err)
}

func TestDecode_Paths(t *testing.T) {
	s := New(config.DefaultConfig(), nil)

	_, err := s.decode(nil)
	assert.ErrorIs(t, err, normalize.ErrEmptyImage)

	heic := append([]byte{0, 0, 0, 0x18}, []byte("ftypheic........")...)
	_, err = s.decode(heic)
	assert.ErrorIs(t, err, normalize.ErrUnsupportedFormat)

	_, err = s.decode([]byte("definitely not an image"))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(20, 10, color.White)))
	img, err := s.decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestDecode_BrokenPDF(t *testing.T) {
	s := New(config.DefaultConfig(), nil)
	_, err := s.decode([]byte("%PDF-1.4 truncated"))
	assert.Error(t, err)
}
