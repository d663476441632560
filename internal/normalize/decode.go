// Package normalize turns raw uploaded bytes into a clean, upright,
// OCR-ready image: decode, card isolation with perspective correction,
// orientation fixing and resampling into the working width band.
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	// Registered for phone and scanner uploads that arrive outside the
	// stdlib formats.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for container formats the scanner cannot
// decode, notably HEIC uploads that were not converted by the caller.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ErrEmptyImage is returned when the payload holds no decodable pixels.
var ErrEmptyImage = errors.New("empty image data")

// heicBrands are ISO-BMFF major brands used by HEIC/HEIF containers.
var heicBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("hevx"),
	[]byte("heim"), []byte("heis"), []byte("mif1"), []byte("msf1"),
}

// IsHEIC sniffs the ISO-BMFF ftyp box for a HEIC/HEIF major brand.
func IsHEIC(data []byte) bool {
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	brand := data[8:12]
	for _, b := range heicBrands {
		if bytes.Equal(brand, b) {
			return true
		}
	}
	return false
}

// Decode decodes raw upload bytes into an image, honoring EXIF orientation.
// HEIC payloads are rejected with ErrUnsupportedFormat so the caller can ask
// for a pre-converted upload.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if IsHEIC(data) {
		return nil, fmt.Errorf("%w: HEIC uploads must be converted to JPEG or PNG first", ErrUnsupportedFormat)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrEmptyImage
	}
	return img, nil
}
