package variants

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	src := imaging.Grayscale(img)
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		for x := range b.Dx() {
			c := color.GrayModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			out.SetGray(x, y, c)
		}
	}
	return out
}

func histogram(g *image.Gray) [256]int {
	var hist [256]int
	for _, p := range g.Pix {
		hist[p]++
	}
	return hist
}

// autocontrast stretches the intensity range so the darkest pixel maps to 0
// and the brightest to 255.
func autocontrast(g *image.Gray) *image.Gray {
	hist := histogram(g)
	lo, hi := 0, 255
	for lo < 256 && hist[lo] == 0 {
		lo++
	}
	for hi >= 0 && hist[hi] == 0 {
		hi--
	}
	if lo >= hi {
		return g
	}
	scale := 255.0 / float64(hi-lo)
	out := image.NewGray(g.Bounds())
	for i, p := range g.Pix {
		v := float64(int(p)-lo) * scale
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		out.Pix[i] = uint8(v)
	}
	return out
}

// equalize applies global histogram equalization.
func equalize(g *image.Gray) *image.Gray {
	hist := histogram(g)
	total := len(g.Pix)
	if total == 0 {
		return g
	}
	var lut [256]uint8
	cum := 0
	for i, n := range hist {
		cum += n
		lut[i] = uint8(255 * cum / total)
	}
	out := image.NewGray(g.Bounds())
	for i, p := range g.Pix {
		out.Pix[i] = lut[p]
	}
	return out
}

// median3 applies a 3x3 median filter.
func median3(g *image.Gray) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)
	var window [9]uint8
	for y := range h {
		for x := range w {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					window[n] = g.Pix[yy*g.Stride+xx]
					n++
				}
			}
			// insertion sort of the small window
			for i := 1; i < n; i++ {
				v := window[i]
				j := i - 1
				for j >= 0 && window[j] > v {
					window[j+1] = window[j]
					j--
				}
				window[j+1] = v
			}
			out.Pix[y*out.Stride+x] = window[n/2]
		}
	}
	return out
}

// binarizeByMass thresholds at the intensity below which massFraction of all
// pixel mass falls, with a fixed fallback when the histogram is degenerate.
func binarizeByMass(g *image.Gray, massFraction float64, fallback uint8) *image.Gray {
	hist := histogram(g)
	total := len(g.Pix)
	threshold := int(fallback)
	if total > 0 {
		target := int(massFraction * float64(total))
		cum := 0
		found := false
		for i, n := range hist {
			cum += n
			if cum >= target {
				threshold = i
				found = true
				break
			}
		}
		if !found || threshold <= 0 || threshold >= 255 {
			threshold = int(fallback)
		}
	}
	out := image.NewGray(g.Bounds())
	for i, p := range g.Pix {
		if int(p) > threshold {
			out.Pix[i] = 255
		}
	}
	return out
}

// adaptiveThreshold binarizes against the local mean of a window of the
// given radius, offset by c. Uses a summed-area table for the means.
func adaptiveThreshold(g *image.Gray, radius int, c float64) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return g
	}

	integral := make([]int64, (w+1)*(h+1))
	for y := range h {
		var rowSum int64
		for x := range w {
			rowSum += int64(g.Pix[y*g.Stride+x])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + rowSum
		}
	}

	out := image.NewGray(b)
	for y := range h {
		y0 := max(0, y-radius)
		y1 := min(h-1, y+radius)
		for x := range w {
			x0 := max(0, x-radius)
			x1 := min(w-1, x+radius)
			count := int64((y1 - y0 + 1) * (x1 - x0 + 1))
			sum := integral[(y1+1)*(w+1)+x1+1] - integral[y0*(w+1)+x1+1] -
				integral[(y1+1)*(w+1)+x0] + integral[y0*(w+1)+x0]
			mean := float64(sum) / float64(count)
			if float64(g.Pix[y*g.Stride+x]) > mean-c {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// clahe applies contrast-limited adaptive histogram equalization over a
// tiles x tiles grid with bilinear blending between tile mappings.
func clahe(g *image.Gray, tiles int, clipLimit float64) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if tiles < 1 || w < tiles || h < tiles {
		return equalize(g)
	}

	tileW := (w + tiles - 1) / tiles
	tileH := (h + tiles - 1) / tiles
	luts := make([][256]uint8, tiles*tiles)

	for ty := range tiles {
		for tx := range tiles {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			var hist [256]int
			count := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[g.Pix[y*g.Stride+x]]++
					count++
				}
			}
			if count == 0 {
				continue
			}
			// Clip the histogram and redistribute the excess uniformly.
			limit := int(clipLimit * float64(count) / 256.0)
			if limit < 1 {
				limit = 1
			}
			excess := 0
			for i := range hist {
				if hist[i] > limit {
					excess += hist[i] - limit
					hist[i] = limit
				}
			}
			add := excess / 256
			for i := range hist {
				hist[i] += add
			}
			cum := 0
			lut := &luts[ty*tiles+tx]
			for i, n := range hist {
				cum += n
				lut[i] = uint8(255 * cum / count)
			}
		}
	}

	out := image.NewGray(b)
	for y := range h {
		fy := (float64(y)-float64(tileH)/2+0.5) / float64(tileH)
		ty0 := int(fy)
		if fy < 0 {
			ty0 = 0
		}
		ty1 := min(ty0+1, tiles-1)
		wy := fy - float64(ty0)
		if wy < 0 {
			wy = 0
		} else if wy > 1 {
			wy = 1
			ty0 = ty1
		}
		for x := range w {
			fx := (float64(x)-float64(tileW)/2+0.5) / float64(tileW)
			tx0 := int(fx)
			if fx < 0 {
				tx0 = 0
			}
			tx1 := min(tx0+1, tiles-1)
			wx := fx - float64(tx0)
			if wx < 0 {
				wx = 0
			} else if wx > 1 {
				wx = 1
				tx0 = tx1
			}
			p := g.Pix[y*g.Stride+x]
			v00 := float64(luts[ty0*tiles+tx0][p])
			v10 := float64(luts[ty0*tiles+tx1][p])
			v01 := float64(luts[ty1*tiles+tx0][p])
			v11 := float64(luts[ty1*tiles+tx1][p])
			top := v00 + (v10-v00)*wx
			bot := v01 + (v11-v01)*wx
			out.Pix[y*out.Stride+x] = uint8(top + (bot-top)*wy + 0.5)
		}
	}
	return out
}
