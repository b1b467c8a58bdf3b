// Package imageutil decodes webcam frames and prepares images for the recognition service.
package imageutil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is used for every re-encoded frame.
const JPEGQuality = 85

// ErrBadBase64 is returned when a frame payload is not valid base64.
var ErrBadBase64 = errors.New("bad base64")

// DecodeDataURL decodes a "data:image/...;base64,..." URL or a bare base64 string.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return nil, fmt.Errorf("%w: missing data URL separator", ErrBadBase64)
		}
		s = s[i+1:]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrBadBase64)
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some encoders drop the padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadBase64, err)
		}
	}
	return data, nil
}

// EncodeDataURL encodes image bytes as a data URL with a sniffed MIME type.
func EncodeDataURL(data []byte) string {
	return "data:" + DetectMIMEType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DetectMIMEType detects the MIME type of image data from magic bytes.
func DetectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}

// IsImage reports whether the data starts with a supported image signature.
func IsImage(data []byte) bool {
	return strings.HasPrefix(DetectMIMEType(data), "image/")
}

// NormalizeJPEG decodes any supported image and re-encodes it as JPEG,
// downscaling so neither side exceeds maxSize.
func NormalizeJPEG(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return EncodeJPEG(img, maxSize)
}

// EncodeJPEG encodes an image as JPEG, downscaling so neither side exceeds maxSize.
func EncodeJPEG(img image.Image, maxSize int) ([]byte, error) {
	img = Fit(img, maxSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Fit resizes an image to fit within maxSize (width or height) while keeping aspect ratio.
// Images already small enough are returned unchanged.
func Fit(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}
