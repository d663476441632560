package normalize

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovecrm/cardscan/internal/config"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solidImage(w, h int, c color.Color) image.Image {
	return imaging.New(w, h, c)
}

func TestDecode_PNG(t *testing.T) {
	data := encodePNG(t, solidImage(10, 8, color.White))
	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestDecode_Empty(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte("not an image at all"))
	assert.Error(t, err)
}

func TestDecode_HEICRejected(t *testing.T) {
	payload := append([]byte{0, 0, 0, 0x18}, []byte("ftypheic")...)
	payload = append(payload, make([]byte, 64)...)
	_, err := Decode(payload)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestIsHEIC(t *testing.T) {
	assert.True(t, IsHEIC(append([]byte{0, 0, 0, 0x18}, []byte("ftypheic....")...)))
	assert.True(t, IsHEIC(append([]byte{0, 0, 0, 0x1c}, []byte("ftypmif1....")...)))
	assert.False(t, IsHEIC(append([]byte{0, 0, 0, 0x18}, []byte("ftypisom....")...)))
	assert.False(t, IsHEIC([]byte("short")))
	assert.False(t, IsHEIC(encodePNG(t, solidImage(4, 4, color.White))))
}

func TestResizeToBand(t *testing.T) {
	cfg := config.DefaultConfig().Normalize
	n := New(cfg, nil)

	small := n.ResizeToBand(solidImage(300, 200, color.White))
	assert.Equal(t, cfg.MinWidth, small.Bounds().Dx())

	large := n.ResizeToBand(solidImage(4000, 3000, color.White))
	assert.Equal(t, cfg.MaxWidth, large.Bounds().Dx())

	inBand := solidImage(1500, 1000, color.White)
	assert.Equal(t, inBand, n.ResizeToBand(inBand))
}

func TestConvexHull_Square(t *testing.T) {
	pts := []Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {2, 2}, {1, 3}}
	hull := convexHull(pts)
	assert.Len(t, hull, 4)
}

func TestMinAreaRect_AxisAligned(t *testing.T) {
	pts := []Point{{1, 1}, {5, 1}, {5, 3}, {1, 3}}
	rect := minAreaRect(pts)
	require.Len(t, rect, 4)
	q := orderQuad(rect)
	assert.InDelta(t, 4.0, q.Width(), 1e-6)
	assert.InDelta(t, 2.0, q.Height(), 1e-6)
}

func TestOrderQuad(t *testing.T) {
	q := orderQuad([]Point{{10, 0}, {0, 0}, {0, 10}, {10, 10}})
	assert.Equal(t, Point{0, 0}, q[0])
	assert.Equal(t, Point{10, 0}, q[1])
	assert.Equal(t, Point{10, 10}, q[2])
	assert.Equal(t, Point{0, 10}, q[3])
}

func TestHomography_Identity(t *testing.T) {
	q := Quad{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	h, ok := computeHomography(q, q)
	require.True(t, ok)
	x, y := applyHomography(h, 3, 7)
	assert.InDelta(t, 3.0, x, 1e-9)
	assert.InDelta(t, 7.0, y, 1e-9)
}

func TestWarpPerspective_PreservesSolidColor(t *testing.T) {
	src := solidImage(50, 30, color.RGBA{10, 200, 30, 255})
	quad := Quad{{5, 5}, {45, 5}, {45, 25}, {5, 25}}
	out := warpPerspective(src, quad, 40, 20)
	require.NotNil(t, out)
	r, g, b, _ := out.At(20, 10).RGBA()
	assert.Equal(t, uint32(10), r>>8)
	assert.Equal(t, uint32(200), g>>8)
	assert.Equal(t, uint32(30), b>>8)
}

func TestCardCrop_NoContourKeepsImage(t *testing.T) {
	// A uniform frame has no card-vs-background contrast; the crop must
	// return the input untouched.
	img := solidImage(200, 100, color.White)
	out := CardCrop(img, 0.1, 20)
	assert.Equal(t, img, out)
}

func TestCardCrop_FindsCardOnDarkBackground(t *testing.T) {
	// White card centered on a black background.
	bg := imaging.New(400, 300, color.Black)
	card := imaging.New(240, 140, color.White)
	img := imaging.Paste(bg, card, image.Pt(80, 80))

	out := CardCrop(img, 0.1, 10)
	require.NotNil(t, out)
	// The crop plus border should be much smaller than the full frame but
	// close to the card's aspect.
	assert.Less(t, out.Bounds().Dx(), 400)
	ratio := float64(out.Bounds().Dx()) / float64(out.Bounds().Dy())
	assert.InDelta(t, 240.0/140.0, ratio, 0.45)
}

func TestDetectRotation_NilAndTiny(t *testing.T) {
	assert.Equal(t, 0, DetectRotation(nil))
	assert.Equal(t, 0, DetectRotation(solidImage(1, 1, color.White)))
}

func TestApplyRotation(t *testing.T) {
	img := solidImage(30, 10, color.White)
	assert.Equal(t, 10, ApplyRotation(img, 90).Bounds().Dx())
	assert.Equal(t, 30, ApplyRotation(img, 180).Bounds().Dx())
	assert.Equal(t, 10, ApplyRotation(img, 270).Bounds().Dx())
	assert.Equal(t, img, ApplyRotation(img, 0))
}

func TestNormalize_EndToEnd(t *testing.T) {
	cfg := config.DefaultConfig().Normalize
	cfg.CardCrop = false
	n := New(cfg, nil)

	data := encodePNG(t, solidImage(600, 400, color.White))
	img, err := n.Normalize(data)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, img.Bounds().Dx(), cfg.MinWidth)
	assert.LessOrEqual(t, img.Bounds().Dx(), cfg.MaxWidth)
}
