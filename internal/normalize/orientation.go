package normalize

import (
	"image"

	"github.com/disintegration/imaging"
)

// DetectRotation estimates whether the image is rotated 90 degrees by
// comparing binary transition density along rows versus columns of a small
// thumbnail. Printed text produces far more transitions along the reading
// direction, so a sideways card shows the excess on columns instead of rows.
// Returns 0 or 90; the 180-degree case is indistinguishable here and is left
// to the rotation sweep in the scan loop.
func DetectRotation(img image.Image) int {
	if img == nil {
		return 0
	}
	thumb := imaging.Resize(img, 128, 128, imaging.Lanczos)
	b := thumb.Bounds()
	if b.Dx() <= 1 || b.Dy() <= 1 {
		return 0
	}

	mean := meanLuminance(thumb)
	rows := countTransitions(thumb, mean, true)
	cols := countTransitions(thumb, mean, false)

	// Strong dominance is required; near-ties mean square-ish content where
	// rotating would do more harm than good.
	if cols > rows*1.3 {
		return 90
	}
	return 0
}

// ApplyRotation rotates by the given clockwise angle in degrees.
func ApplyRotation(img image.Image, degrees int) image.Image {
	switch degrees % 360 {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func luminance(r, g, b uint32) float64 {
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}

func meanLuminance(img image.Image) float64 {
	b := img.Bounds()
	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			sum += luminance(r, g, bb)
		}
	}
	return sum / float64(b.Dx()*b.Dy())
}

// countTransitions counts light/dark flips scanning rows (alongRows) or
// columns against the mean-luminance threshold.
func countTransitions(img image.Image, mean float64, alongRows bool) float64 {
	b := img.Bounds()
	var transitions float64

	outer, inner := b.Dy(), b.Dx()
	if !alongRows {
		outer, inner = b.Dx(), b.Dy()
	}
	for o := range outer {
		prev := 0
		for i := range inner {
			var r, g, bb uint32
			if alongRows {
				r, g, bb, _ = img.At(b.Min.X+i, b.Min.Y+o).RGBA()
			} else {
				r, g, bb, _ = img.At(b.Min.X+o, b.Min.Y+i).RGBA()
			}
			cur := 0
			if luminance(r, g, bb) > mean {
				cur = 1
			}
			if i > 0 && cur != prev {
				transitions++
			}
			prev = cur
		}
	}
	return transitions
}
