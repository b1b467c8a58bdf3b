package imageutil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeDataURL(t *testing.T) {
	raw := []byte("frame-bytes")
	b64 := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"data url", "data:image/jpeg;base64," + b64, "frame-bytes", false},
		{"bare base64", b64, "frame-bytes", false},
		{"unpadded", base64.RawStdEncoding.EncodeToString(raw), "frame-bytes", false},
		{"surrounding space", "  " + b64 + "\n", "frame-bytes", false},
		{"garbage", "data:image/jpeg;base64,!!!not-base64", "", true},
		{"missing separator", "data:image/jpeg;base64", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDataURL(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrBadBase64) {
					t.Fatalf("expected ErrBadBase64, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("DecodeDataURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeDataURL_RoundTrip(t *testing.T) {
	data := testPNG(t, 4, 4)
	url := EncodeDataURL(data)

	if url[:22] != "data:image/png;base64," {
		t.Errorf("unexpected prefix: %s", url[:22])
	}
	got, err := DecodeDataURL(url)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round trip changed the payload")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte("GIF89a\x00\x00"), "image/gif"},
		{"bmp", []byte("BM\x00\x00\x00\x00\x00\x00"), "image/bmp"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
		{"short", []byte{0xFF, 0xD8}, "application/octet-stream"},
		{"text", []byte("hello world"), "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIMEType(tt.data); got != tt.want {
				t.Errorf("DetectMIMEType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeJPEG_Downscales(t *testing.T) {
	out, err := NormalizeJPEG(testPNG(t, 200, 100), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if DetectMIMEType(out) != "image/jpeg" {
		t.Fatalf("expected JPEG output, got %s", DetectMIMEType(out))
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("unexpected size %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizeJPEG_KeepsSmallImages(t *testing.T) {
	out, err := NormalizeJPEG(testPNG(t, 20, 30), 100)
	if err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 30 {
		t.Errorf("unexpected size %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizeJPEG_InvalidImage(t *testing.T) {
	if _, err := NormalizeJPEG([]byte("definitely not an image"), 100); err == nil {
		t.Error("expected decode error")
	}
}

func TestFit_Portrait(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 30, 90))
	got := Fit(img, 45)
	if b := got.Bounds(); b.Dx() != 15 || b.Dy() != 45 {
		t.Errorf("unexpected size %dx%d", b.Dx(), b.Dy())
	}
}
