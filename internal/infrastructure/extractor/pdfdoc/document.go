// Package pdfdoc reads page text, glyph positions, vector segments and image
// placements from PDF files with ledongthuc/pdf.
package pdfdoc

import (
	"fmt"
	"math"
	"os"

	"github.com/ledongthuc/pdf"
)

const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
	maxParentDepth    = 32
)

// Document is an open PDF. It is not safe for concurrent use; callers that
// process pages in parallel open one Document per goroutine.
type Document struct {
	file   *os.File
	reader *pdf.Reader
}

func Open(path string) (doc *Document, err error) {
	defer recoverInto(&err, "open pdf")

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &Document{file: f, reader: r}, nil
}

func (d *Document) Close() error {
	if d == nil || d.file == nil {
		return nil
	}
	return d.file.Close()
}

func (d *Document) NumPages() int {
	return d.reader.NumPage()
}

// Page returns the 1-based page.
func (d *Document) Page(number int) (page *Page, err error) {
	defer recoverInto(&err, fmt.Sprintf("read page %d", number))

	if number < 1 || number > d.NumPages() {
		return nil, fmt.Errorf("page %d out of range 1..%d", number, d.NumPages())
	}
	p := d.reader.Page(number)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d: missing page object", number)
	}
	return &Page{number: number, page: p, box: mediaBox(p)}, nil
}

// box is a page rectangle in PDF user space (origin bottom-left).
type box struct {
	llx, lly, urx, ury float64
}

func (b box) width() float64  { return b.urx - b.llx }
func (b box) height() float64 { return b.ury - b.lly }

// toPage converts a user-space point into top-left origin page coordinates.
func (b box) toPage(x, y float64) (float64, float64) {
	return x - b.llx, b.ury - y
}

func mediaBox(p pdf.Page) box {
	v := p.V
	for i := 0; i < maxParentDepth && !v.IsNull(); i++ {
		if mb := v.Key("MediaBox"); mb.Kind() == pdf.Array && mb.Len() == 4 {
			b := box{
				llx: math.Min(mb.Index(0).Float64(), mb.Index(2).Float64()),
				lly: math.Min(mb.Index(1).Float64(), mb.Index(3).Float64()),
				urx: math.Max(mb.Index(0).Float64(), mb.Index(2).Float64()),
				ury: math.Max(mb.Index(1).Float64(), mb.Index(3).Float64()),
			}
			if b.width() > 0 && b.height() > 0 {
				return b
			}
		}
		v = v.Key("Parent")
	}
	return box{urx: defaultPageWidth, ury: defaultPageHeight}
}

// recoverInto turns a parser panic into an error; malformed streams make
// ledongthuc/pdf panic instead of returning errors.
func recoverInto(err *error, op string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: malformed pdf: %v", op, r)
	}
}
