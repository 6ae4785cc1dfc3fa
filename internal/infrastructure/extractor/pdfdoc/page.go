package pdfdoc

import (
	"math"

	"github.com/ledongthuc/pdf"
)

// Glyph is one shown character in top-left origin page coordinates.
type Glyph struct {
	Text   string
	X0     float64
	X1     float64
	Top    float64
	Bottom float64
	Size   float64
}

type Page struct {
	number int
	page   pdf.Page
	box    box
}

func (p *Page) Number() int     { return p.number }
func (p *Page) Width() float64  { return p.box.width() }
func (p *Page) Height() float64 { return p.box.height() }

func (p *Page) PlainText() (text string, err error) {
	defer recoverInto(&err, "read page text")
	return p.page.GetPlainText(nil)
}

// Glyphs returns every character drawn by the page content stream.
func (p *Page) Glyphs() (glyphs []Glyph, err error) {
	defer recoverInto(&err, "read page content")

	content := p.page.Content()
	glyphs = make([]Glyph, 0, len(content.Text))
	for _, t := range content.Text {
		size := math.Abs(t.FontSize)
		if size == 0 {
			size = 10
		}
		width := math.Abs(t.W)
		if width == 0 {
			width = size / 2
		}
		x, baseline := p.box.toPage(t.X, t.Y)
		glyphs = append(glyphs, Glyph{
			Text:   t.S,
			X0:     x,
			X1:     x + width,
			Top:    baseline - size,
			Bottom: baseline,
			Size:   size,
		})
	}
	return glyphs, nil
}

func (p *Page) HasCharPositions() (bool, error) {
	glyphs, err := p.Glyphs()
	if err != nil {
		return false, err
	}
	return len(glyphs) > 0, nil
}
