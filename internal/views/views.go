// Package views cuts a document image into overlapping crops so that small
// print is seen at a higher effective resolution by the OCR model.
package views

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultOverlap is the number of rows each half band extends past the midline.
const DefaultOverlap = 50

const jpegQuality = 95

// Region is a crop rectangle and its position in the source image.
// The offset always equals Rect.Min.
type Region struct {
	Name    string
	Rect    image.Rectangle
	OffsetX int
	OffsetY int
}

// View is an encoded crop ready to send to a model.
type View struct {
	Name    string
	Image   []byte
	Bounds  image.Rectangle
	OffsetX int
	OffsetY int
}

// Regions returns the view layout for a width×height image, in order:
// full, top band, bottom band, center crop. It is a pure function of the
// dimensions. Regions that would be empty on tiny images fall back to the
// full image.
func Regions(width, height, overlap int) []Region {
	if overlap < 0 {
		overlap = 0
	}
	full := image.Rect(0, 0, width, height)
	mid := height / 2

	top := image.Rect(0, 0, width, min(height, mid+overlap))

	bottomStart := max(0, mid-overlap)
	bottom := image.Rect(0, bottomStart, width, height)

	mx, my := width/6, height/6
	center := image.Rect(mx, my, width-mx, height-my)

	regions := []Region{
		{Name: "full", Rect: full},
		{Name: "top", Rect: top},
		{Name: "bottom", Rect: bottom},
		{Name: "center", Rect: center},
	}
	for i := range regions {
		if regions[i].Rect.Empty() {
			regions[i].Rect = full
		}
		regions[i].OffsetX = regions[i].Rect.Min.X
		regions[i].OffsetY = regions[i].Rect.Min.Y
	}
	return regions
}

// Generate crops img into the standard views and JPEG-encodes each one.
func Generate(img image.Image, overlap int) ([]View, error) {
	b := img.Bounds()
	regions := Regions(b.Dx(), b.Dy(), overlap)

	out := make([]View, 0, len(regions))
	for _, r := range regions {
		data, err := encodeCrop(img, r.Rect.Add(b.Min))
		if err != nil {
			return nil, fmt.Errorf("encode %s view: %w", r.Name, err)
		}
		out = append(out, View{
			Name:    r.Name,
			Image:   data,
			Bounds:  r.Rect,
			OffsetX: r.OffsetX,
			OffsetY: r.OffsetY,
		})
	}
	return out, nil
}

func encodeCrop(src image.Image, rect image.Rectangle) ([]byte, error) {
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Copy(dst, image.Point{}, src, rect, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
