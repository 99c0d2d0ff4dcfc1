package preprocess

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Black)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// withDimensions rewrites the IHDR size of a PNG and fixes its checksum.
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	// 8-byte signature, 4-byte length, "IHDR", then width and height.
	if string(out[12:16]) != "IHDR" {
		t.Fatal("IHDR not found")
	}
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecode(t *testing.T) {
	t.Run("png", func(t *testing.T) {
		img, format, err := Decode(encodePNG(t, 10, 5))
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if format != "png" {
			t.Errorf("format = %q, want png", format)
		}
		if img.Bounds().Dx() != 10 {
			t.Errorf("width = %d", img.Bounds().Dx())
		}
	})

	t.Run("declared size over the pixel cap", func(t *testing.T) {
		forged := withDimensions(t, encodePNG(t, 1, 1), 40000, 40000)
		if _, _, err := image.DecodeConfig(bytes.NewReader(forged)); err != nil {
			t.Fatalf("forged header does not parse: %v", err)
		}
		_, _, err := Decode(forged)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("Decode() error = %v, want ErrDecode", err)
		}
		if _, err := Normalize(forged, Options{}); !errors.Is(err, ErrDecode) {
			t.Errorf("Normalize() error = %v, want ErrDecode", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := Decode([]byte("not an image"))
		if !errors.Is(err, ErrDecode) {
			t.Errorf("Decode() error = %v, want ErrDecode", err)
		}
	})
}

func TestNormalize(t *testing.T) {
	t.Run("pads and upscales small capture", func(t *testing.T) {
		img, err := Normalize(encodePNG(t, 160, 100), Options{})
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		// 200x140 padded, scale min(800/140, 4) = 4
		if got := img.Bounds(); got.Dx() != 800 || got.Dy() != 560 {
			t.Errorf("bounds = %v, want 800x560", got)
		}
		r, g, b, _ := img.At(0, 0).RGBA()
		if r != 0xffff || g != 0xffff || b != 0xffff {
			t.Errorf("corner pixel = %v, want white padding", img.At(0, 0))
		}
	})

	t.Run("keeps mid-size image", func(t *testing.T) {
		img, err := Normalize(encodePNG(t, 1000, 900), Options{})
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		if got := img.Bounds(); got.Dx() != 1040 || got.Dy() != 940 {
			t.Errorf("bounds = %v, want 1040x940", got)
		}
	})

	t.Run("downscales oversized scan", func(t *testing.T) {
		img, err := Normalize(encodePNG(t, 300, 100), Options{MaxSide: 170, MinSide: 10})
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		if got := img.Bounds().Dx(); got != 170 {
			t.Errorf("width = %d, want 170", got)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if _, err := Normalize([]byte{0x00, 0x01}, Options{}); !errors.Is(err, ErrDecode) {
			t.Errorf("Normalize() error = %v, want ErrDecode", err)
		}
	})
}
