package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// segmentLines finds horizontal text bands by row ink projection: rows whose
// dark-pixel count clears a small fraction of the width belong to a line.
// Returns bounding boxes in reading order, trimmed to the ink columns.
func segmentLines(img image.Image) []image.Rectangle {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	dark := make([][]bool, h)
	rowInk := make([]int, h)
	mean := 0.0
	for y := range h {
		dark[y] = make([]bool, w)
		for x := range w {
			c := color.GrayModel.Convert(gray.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			mean += float64(c.Y)
		}
	}
	mean /= float64(w * h)
	threshold := uint8(mean * 0.8)
	for y := range h {
		for x := range w {
			c := color.GrayModel.Convert(gray.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if c.Y < threshold {
				dark[y][x] = true
				rowInk[y]++
			}
		}
	}

	minInk := w / 100
	if minInk < 2 {
		minInk = 2
	}

	var boxes []image.Rectangle
	y := 0
	for y < h {
		for y < h && rowInk[y] < minInk {
			y++
		}
		if y >= h {
			break
		}
		top := y
		for y < h && rowInk[y] >= minInk {
			y++
		}
		bottom := y
		if bottom-top < 4 {
			continue
		}
		// Trim to ink columns.
		left, right := w, 0
		for yy := top; yy < bottom; yy++ {
			for x := range w {
				if dark[yy][x] {
					if x < left {
						left = x
					}
					if x > right {
						right = x
					}
				}
			}
		}
		if right <= left {
			continue
		}
		boxes = append(boxes, image.Rect(left, top, right+1, bottom))
	}
	return boxes
}

// groupParagraphs splits line boxes into paragraph groups wherever the
// vertical gap exceeds 1.5 times the median line height.
func groupParagraphs(boxes []image.Rectangle) [][]image.Rectangle {
	if len(boxes) == 0 {
		return nil
	}
	heights := make([]int, len(boxes))
	for i, b := range boxes {
		heights[i] = b.Dy()
	}
	for i := 1; i < len(heights); i++ {
		v := heights[i]
		j := i - 1
		for j >= 0 && heights[j] > v {
			heights[j+1] = heights[j]
			j--
		}
		heights[j+1] = v
	}
	median := heights[len(heights)/2]
	gapLimit := median + median/2

	groups := [][]image.Rectangle{{boxes[0]}}
	for i := 1; i < len(boxes); i++ {
		gap := boxes[i].Min.Y - boxes[i-1].Max.Y
		if gap > gapLimit {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], boxes[i])
	}
	return groups
}

// cropRect extracts a rectangle from the image.
func cropRect(img image.Image, r image.Rectangle) image.Image {
	return imaging.Crop(img, r.Add(img.Bounds().Min))
}
