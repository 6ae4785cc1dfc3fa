package pdfdoc

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/extractor/pdfdoc/pdftest"
)

func openTestPage(t *testing.T, page pdftest.Page) *Page {
	t.Helper()
	path := pdftest.WriteFile(t, "page.pdf", []pdftest.Page{page})
	doc, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = doc.Close() })
	p, err := doc.Page(1)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	return p
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestGraphicsCollectsPaintedSegments(t *testing.T) {
	p := openTestPage(t, pdftest.Page{Content: "" +
		"0.5 w 100 500 m 300 500 l S\n" +
		"100 480 200 20 re f\n" +
		"0 0 612 792 re W n\n"})

	g, err := p.Graphics()
	if err != nil {
		t.Fatalf("Graphics() error = %v", err)
	}
	if len(g.Segments) != 5 {
		t.Fatalf("expected 5 painted segments, got %d: %+v", len(g.Segments), g.Segments)
	}
	line := g.Segments[0]
	if !near(line.X0, 100) || !near(line.X1, 300) || !near(line.Y0, 292) || !near(line.Y1, 292) {
		t.Fatalf("unexpected stroked line %+v", line)
	}
}

func TestGraphicsLocatesImages(t *testing.T) {
	p := openTestPage(t, pdftest.Page{
		Content: "q 50 0 0 40 72 600 cm /Im1 Do Q\n",
		Images: map[string]pdftest.Image{
			"Im1": {Width: 2, Height: 1, Data: []byte{255, 0, 0, 0, 0, 255}},
		},
	})
	if !near(p.Width(), 612) || !near(p.Height(), 792) {
		t.Fatalf("expected inherited letter media box, got %vx%v", p.Width(), p.Height())
	}

	g, err := p.Graphics()
	if err != nil {
		t.Fatalf("Graphics() error = %v", err)
	}
	if len(g.Images) != 1 {
		t.Fatalf("expected one image placement, got %d", len(g.Images))
	}
	img := g.Images[0]
	if img.Name != "Im1" || img.Width != 2 || img.Height != 1 {
		t.Fatalf("unexpected placement %+v", img)
	}
	if !near(img.BBox.X0, 72) || !near(img.BBox.X1, 122) || !near(img.BBox.Y0, 152) || !near(img.BBox.Y1, 192) {
		t.Fatalf("unexpected image bbox %+v", img.BBox)
	}

	raster, err := img.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	rgba, ok := raster.(*image.RGBA)
	if !ok || rgba.Bounds().Dx() != 2 || rgba.Bounds().Dy() != 1 {
		t.Fatalf("unexpected raster %T %v", raster, raster.Bounds())
	}
	if r, _, b, a := rgba.At(0, 0).RGBA(); r != 0xffff || b != 0 || a != 0xffff {
		t.Fatalf("unexpected first pixel")
	}
	if r, _, b, _ := rgba.At(1, 0).RGBA(); r != 0 || b != 0xffff {
		t.Fatalf("unexpected second pixel")
	}
}

func TestDecodeRejectsEncodedImages(t *testing.T) {
	p := openTestPage(t, pdftest.Page{
		Content: "q 100 0 0 100 0 0 cm /Photo Do Q\n",
		Images: map[string]pdftest.Image{
			"Photo": {Width: 10, Height: 10, Filter: "DCTDecode", Data: []byte{0xff, 0xd8, 0xff}},
		},
	})

	g, err := p.Graphics()
	if err != nil {
		t.Fatalf("Graphics() error = %v", err)
	}
	if len(g.Images) != 1 {
		t.Fatalf("expected one image placement, got %d", len(g.Images))
	}
	if _, err := g.Images[0].Decode(); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}

func TestGlyphsUseTopLeftOrigin(t *testing.T) {
	p := openTestPage(t, pdftest.Page{Content: pdftest.Text(72, 700, 12, "Devis")})

	glyphs, err := p.Glyphs()
	if err != nil {
		t.Fatalf("Glyphs() error = %v", err)
	}
	if len(glyphs) != 5 {
		t.Fatalf("expected 5 glyphs, got %d", len(glyphs))
	}
	if !near(glyphs[0].Bottom, 92) || !near(glyphs[0].Top, 80) || !near(glyphs[0].X0, 72) {
		t.Fatalf("unexpected first glyph %+v", glyphs[0])
	}
	if glyphs[1].X0 <= glyphs[0].X0 {
		t.Fatalf("expected glyphs to advance horizontally")
	}
}
