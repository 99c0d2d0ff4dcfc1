// Package preprocess decodes uploaded images and normalizes their geometry
// before views are cut. Pixel filters are deliberately absent.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when the bytes are not a supported image.
var ErrDecode = errors.New("could not decode image")

// MaxPixels bounds the declared size of an image accepted by Decode.
const MaxPixels = 50_000_000

// Options controls geometry normalization. Zero values take the defaults.
type Options struct {
	Padding  int     // white border on every side (default 20)
	MinSide  int     // shorter side target for small captures (default 800)
	MaxScale float64 // upscale cap (default 4)
	MaxSide  int     // longer side limit (default 2600)
}

// DefaultOptions returns the normalization used by the pipeline.
func DefaultOptions() Options {
	return Options{Padding: 20, MinSide: 800, MaxScale: 4, MaxSide: 2600}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Padding <= 0 {
		o.Padding = d.Padding
	}
	if o.MinSide <= 0 {
		o.MinSide = d.MinSide
	}
	if o.MaxScale <= 0 {
		o.MaxScale = d.MaxScale
	}
	if o.MaxSide <= 0 {
		o.MaxSide = d.MaxSide
	}
	return o
}

// Decode parses JPEG, PNG, WebP, BMP or TIFF bytes. Images whose header
// declares more than MaxPixels are rejected before any pixel is read.
func Decode(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrDecode)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, "", fmt.Errorf("%w: empty image", ErrDecode)
	}
	return img, format, nil
}

// Normalize decodes data, pads it with a white border and rescales it so
// that small captures are enlarged and oversized scans are reduced.
func Normalize(data []byte, opts Options) (image.Image, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	img = pad(img, opts.Padding)

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if short := min(w, h); short < opts.MinSide {
		scale := min(float64(opts.MinSide)/float64(short), opts.MaxScale)
		if scale > 1.2 {
			img = resize(img, scale, draw.CatmullRom)
		}
	}

	w, h = img.Bounds().Dx(), img.Bounds().Dy()
	if long := max(w, h); long > opts.MaxSide {
		img = resize(img, float64(opts.MaxSide)/float64(long), draw.ApproxBiLinear)
	}
	return img, nil
}

func pad(src image.Image, n int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()+2*n, b.Dy()+2*n))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(n, n, n+b.Dx(), n+b.Dy()), src, b.Min, draw.Src)
	return dst
}

func resize(src image.Image, scale float64, interp draw.Interpolator) *image.RGBA {
	b := src.Bounds()
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	interp.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
