// Package imaging holds the raster helpers shared by the page extractors.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

const pointsPerInch = 72.0

var ErrEmptyRegion = errors.New("empty image region")

// FitWithin scales img down so it fits maxW×maxH, keeping its aspect ratio.
// Images that already fit are returned unchanged.
func FitWithin(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || (w <= maxW && h <= maxH) {
		return img
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	dw := max(1, int(math.Round(float64(w)*scale)))
	dh := max(1, int(math.Round(float64(h)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// CropPoints copies the region of a page raster rendered at dpi that
// corresponds to bbox, given in page points with a top-left origin.
func CropPoints(page image.Image, bbox domain.BBox, dpi float64) (image.Image, error) {
	scale := dpi / pointsPerInch
	rect := image.Rect(
		int(math.Floor(bbox.X0*scale)),
		int(math.Floor(bbox.Y0*scale)),
		int(math.Ceil(bbox.X1*scale)),
		int(math.Ceil(bbox.Y1*scale)),
	).Add(page.Bounds().Min).Intersect(page.Bounds())
	if rect.Empty() {
		return nil, ErrEmptyRegion
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), page, rect.Min, draw.Src)
	return dst, nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func EncodePNGBase64(img image.Image) (string, error) {
	raw, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Size returns the pixel dimensions of img.
func Size(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
