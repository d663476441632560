// Package variants produces enhanced renditions of a normalized card image.
// Recognition quality varies wildly with preprocessing, so the scan loop
// reads several variants and keeps the best-scoring text.
package variants

import (
	"crypto/md5"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
)

// Variant is a named rendition of the source image.
type Variant struct {
	Name  string
	Image image.Image
}

// Generator builds variant sets. A nil logger falls back to slog.Default.
type Generator struct {
	logger *slog.Logger
}

// NewGenerator creates a variant generator.
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{logger: logger.With("component", "variants")}
}

// Generate returns up to maxVariants deduplicated renditions. Every
// enhancement runs independently; a failing step is skipped, and the plain
// grayscale rendition is always present so the result is never empty.
func (g *Generator) Generate(img image.Image, aggressive bool, maxVariants int) []Variant {
	if maxVariants < 1 {
		maxVariants = 1
	}
	gray := toGray(img)

	var out []Variant
	if aggressive {
		out = g.aggressiveSet(img, gray)
	} else {
		out = g.standardSet(gray)
	}
	return dedupe(out, maxVariants)
}

func (g *Generator) standardSet(gray *image.Gray) []Variant {
	return []Variant{
		{"binarized", binarizeByMass(median3(autocontrast(gray)), 0.6, 180)},
		{"adaptive", adaptiveThreshold(toGray(imaging.Blur(gray, 1.0)), 15, 2)},
		{"clahe", clahe(gray, 8, 2.0)},
		{"grayscale", gray},
	}
}

// aggressiveSet targets faint or tiny print: upscale, then push contrast,
// sharpness and brightness hard.
func (g *Generator) aggressiveSet(img image.Image, gray *image.Gray) []Variant {
	w := img.Bounds().Dx()
	scaled := img
	if w < 600 {
		scaled = imaging.Resize(img, 600, 0, imaging.Lanczos)
	} else {
		scaled = imaging.Resize(img, w*3/2, 0, imaging.Lanczos)
	}
	boosted := imaging.AdjustBrightness(imaging.AdjustContrast(scaled, 60), 10)
	boosted = imaging.Sharpen(boosted, 2.0)

	return []Variant{
		{"aggressive", toGray(boosted)},
		{"aggressive_binarized", binarizeByMass(toGray(boosted), 0.6, 180)},
		{"grayscale", gray},
	}
}

// FastRotations is the cheap sweep used before the heavy pipeline: the
// grayscale image, a high-contrast copy, and the three other quarter turns.
func (g *Generator) FastRotations(img image.Image) []Variant {
	gray := imaging.Grayscale(img)
	return []Variant{
		{"gray", gray},
		{"contrast", imaging.AdjustContrast(gray, 50)},
		{"rot90", imaging.Rotate270(gray)},
		{"rot180", imaging.Rotate180(gray)},
		{"rot270", imaging.Rotate90(gray)},
	}
}

// ExpandWithInversions builds the read list for the primary engine: the
// given variants, inverted copies of the first two, and the untouched
// original, deduplicated and capped at maxTotal.
func ExpandWithInversions(vs []Variant, original image.Image, maxTotal int) []Variant {
	expanded := make([]Variant, 0, len(vs)+3)
	expanded = append(expanded, vs...)
	for i := 0; i < len(vs) && i < 2; i++ {
		expanded = append(expanded, Variant{
			Name:  vs[i].Name + "_inverted",
			Image: imaging.Invert(vs[i].Image),
		})
	}
	expanded = append(expanded, Variant{Name: "original", Image: original})
	return dedupe(expanded, maxTotal)
}

// dedupe drops variants whose pixel content hashes identically and truncates
// to limit.
func dedupe(vs []Variant, limit int) []Variant {
	seen := make(map[[16]byte]struct{}, len(vs))
	out := make([]Variant, 0, len(vs))
	for _, v := range vs {
		if v.Image == nil {
			continue
		}
		h := hashImage(v.Image)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}

func hashImage(img image.Image) [16]byte {
	nrgba := imaging.Clone(img)
	return md5.Sum(nrgba.Pix)
}
