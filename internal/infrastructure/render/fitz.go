// Package render rasterizes PDF pages with MuPDF.
package render

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer opens the document for every call, so concurrent page
// workers never share a MuPDF context.
type FitzRenderer struct{}

func NewFitzRenderer() *FitzRenderer {
	return &FitzRenderer{}
}

func (r *FitzRenderer) RenderPage(ctx context.Context, pdfPath string, pageNumber int, dpi float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rendering: %w", err)
	}
	defer doc.Close()

	if pageNumber < 1 || pageNumber > doc.NumPage() {
		return nil, fmt.Errorf("render page %d: out of range 1..%d", pageNumber, doc.NumPage())
	}
	img, err := doc.ImageDPI(pageNumber-1, dpi)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", pageNumber, err)
	}
	return img, nil
}
