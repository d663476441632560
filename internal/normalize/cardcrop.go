package normalize

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// binaryImage is a thresholded view of a grayscale frame.
type binaryImage struct {
	w, h int
	pix  []bool
}

func (b *binaryImage) at(x, y int) bool     { return b.pix[y*b.w+x] }
func (b *binaryImage) set(x, y int, v bool) { b.pix[y*b.w+x] = v }

// CardCrop tries to isolate the card from its background: threshold the
// blurred grayscale frame, close gaps, take the largest blob covering at
// least minAreaRatio of the frame, fit a rotated rectangle to it and warp
// that region flat. Returns the input unchanged when no plausible card
// contour is found, so cropping can never lose the image.
func CardCrop(img image.Image, minAreaRatio float64, borderPx int) image.Image {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 40 || h < 40 {
		return img
	}

	gray := imaging.Grayscale(imaging.Blur(img, 2.0))
	bin := threshold(gray, otsuLevel(gray))

	// Cards photographed on dark backgrounds come out white-on-dark; make
	// the card the foreground either way.
	if foregroundRatio(bin) < 0.5 {
		invert(bin)
	}
	closeGaps(bin, 7, 2)

	comp := largestComponent(bin)
	if comp == nil || float64(comp.area) < minAreaRatio*float64(w*h) {
		return img
	}

	quad := orderQuad(minAreaRect(comp.outline))
	dstW := int(quad.Width())
	dstH := int(quad.Height())
	if dstW < 40 || dstH < 40 {
		return img
	}

	warped := warpPerspective(img, quad, dstW, dstH)
	if warped == nil {
		return img
	}
	return addBorder(warped, borderPx)
}

// otsuLevel finds the threshold maximizing between-class variance of the
// grayscale histogram.
func otsuLevel(gray image.Image) uint8 {
	var hist [256]int
	b := gray.Bounds()
	total := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.GrayModel.Convert(gray.At(x, y)).(color.Gray)
			hist[c.Y]++
			total++
		}
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var sumB, wB float64
	bestVar := -1.0
	level := uint8(127)
	for i, n := range hist {
		wB += float64(n)
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(n)
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			level = uint8(i)
		}
	}
	return level
}

func threshold(gray image.Image, level uint8) *binaryImage {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	bin := &binaryImage{w: w, h: h, pix: make([]bool, w*h)}
	for y := range h {
		for x := range w {
			c := color.GrayModel.Convert(gray.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			bin.set(x, y, c.Y > level)
		}
	}
	return bin
}

func foregroundRatio(b *binaryImage) float64 {
	on := 0
	for _, v := range b.pix {
		if v {
			on++
		}
	}
	return float64(on) / float64(len(b.pix))
}

func invert(b *binaryImage) {
	for i := range b.pix {
		b.pix[i] = !b.pix[i]
	}
}

// closeGaps performs morphological closing (dilate then erode) with a square
// kernel of the given radius, repeated iterations times.
func closeGaps(b *binaryImage, radius, iterations int) {
	for range iterations {
		dilate(b, radius)
		erode(b, radius)
	}
}

func dilate(b *binaryImage, radius int) {
	out := make([]bool, len(b.pix))
	for y := range b.h {
		for x := range b.w {
			if b.at(x, y) {
				for dy := -radius; dy <= radius; dy++ {
					yy := y + dy
					if yy < 0 || yy >= b.h {
						continue
					}
					for dx := -radius; dx <= radius; dx++ {
						xx := x + dx
						if xx >= 0 && xx < b.w {
							out[yy*b.w+xx] = true
						}
					}
				}
			}
		}
	}
	b.pix = out
}

func erode(b *binaryImage, radius int) {
	out := make([]bool, len(b.pix))
	for y := range b.h {
	next:
		for x := range b.w {
			for dy := -radius; dy <= radius; dy++ {
				yy := y + dy
				for dx := -radius; dx <= radius; dx++ {
					xx := x + dx
					if yy < 0 || yy >= b.h || xx < 0 || xx >= b.w || !b.at(xx, yy) {
						continue next
					}
				}
			}
			out[y*b.w+x] = true
		}
	}
	b.pix = out
}

type component struct {
	area int
	// outline holds the per-row horizontal extremes, enough to fit a
	// rotated rectangle without carrying every pixel.
	outline []Point
}

// largestComponent labels foreground blobs with a flood fill and returns the
// biggest one.
func largestComponent(b *binaryImage) *component {
	visited := make([]bool, len(b.pix))
	var best *component
	queue := make([]int, 0, 1024)

	for start, on := range b.pix {
		if !on || visited[start] {
			continue
		}
		minX := make(map[int]int)
		maxX := make(map[int]int)
		area := 0
		queue = append(queue[:0], start)
		visited[start] = true
		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := idx%b.w, idx/b.w
			area++
			if v, ok := minX[y]; !ok || x < v {
				minX[y] = x
			}
			if v, ok := maxX[y]; !ok || x > v {
				maxX[y] = x
			}
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				xx, yy := x+d[0], y+d[1]
				if xx < 0 || xx >= b.w || yy < 0 || yy >= b.h {
					continue
				}
				nidx := yy*b.w + xx
				if b.pix[nidx] && !visited[nidx] {
					visited[nidx] = true
					queue = append(queue, nidx)
				}
			}
		}
		if best == nil || area > best.area {
			outline := make([]Point, 0, 2*len(minX))
			for y, x := range minX {
				outline = append(outline, Point{float64(x), float64(y)})
			}
			for y, x := range maxX {
				outline = append(outline, Point{float64(x), float64(y)})
			}
			best = &component{area: area, outline: outline}
		}
	}
	return best
}

// addBorder pastes the image onto a white canvas with a margin on all sides.
func addBorder(img image.Image, px int) image.Image {
	if px <= 0 {
		return img
	}
	b := img.Bounds()
	canvas := imaging.New(b.Dx()+2*px, b.Dy()+2*px, color.White)
	return imaging.Paste(canvas, img, image.Pt(px, px))
}
