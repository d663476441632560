package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// IsPDF sniffs the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// extractPDFImage pulls the largest image off the first page of a PDF, the
// common shape of a scanned business card. Extraction goes through a temp
// directory because pdfcpu's image extraction is file based.
func extractPDFImage(data []byte) (image.Image, error) {
	tempDir, err := os.MkdirTemp("", "cardscan-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	pdfPath := filepath.Join(tempDir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	outDir := filepath.Join(tempDir, "images")
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("out dir: %w", err)
	}
	if err := api.ExtractImagesFile(pdfPath, outDir, []string{"1"}, nil); err != nil {
		return nil, fmt.Errorf("extract images from pdf: %w", err)
	}

	img, err := largestExtractedImage(outDir)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// largestExtractedImage walks the pdfcpu output directory (filenames like
// page_1_image_1.png) and returns the image with the most pixels.
func largestExtractedImage(dir string) (image.Image, error) {
	var best image.Image
	bestArea := 0

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if _, perr := parsePageFromFilename(info.Name()); perr != nil {
			return nil
		}
		f, ferr := os.Open(path)
		if ferr != nil {
			return nil
		}
		defer f.Close()
		img, _, derr := image.Decode(f)
		if derr != nil {
			return nil
		}
		area := img.Bounds().Dx() * img.Bounds().Dy()
		if area > bestArea {
			best = img
			bestArea = area
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking extracted images: %w", err)
	}
	if best == nil {
		return nil, errors.New("pdf contains no extractable image")
	}
	return best, nil
}

func parsePageFromFilename(filename string) (int, error) {
	if !strings.HasPrefix(filename, "page_") {
		return 0, errors.New("not a page file")
	}
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		return 0, errors.New("invalid filename format")
	}
	return strconv.Atoi(parts[1])
}
