// Package stamp burns a visible page label onto every page of a PDF copy.
package stamp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultDescription places the label in a white box at the bottom center.
const DefaultDescription = "font:Helvetica, points:11, pos:bc, off:0 15, scale:1 abs, rot:0, " +
	"fillcolor:#000000, bgcolor:#FFFFFF, op:0.9, ma:5"

type Stamper struct {
	description string
}

func NewStamper(description string) *Stamper {
	if strings.TrimSpace(description) == "" {
		description = DefaultDescription
	}
	return &Stamper{description: description}
}

// Stamp writes a copy of srcPath to dstPath with "<label> – Page p/N" on
// every page and returns the page count.
func (s *Stamper) Stamp(ctx context.Context, srcPath, dstPath, label string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return 0, fmt.Errorf("create stamp dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.AddTextWatermarksFile(srcPath, dstPath, nil, true, Label(label), s.description, conf); err != nil {
		return 0, fmt.Errorf("stamp page numbers: %w", err)
	}
	pages, err := api.PageCountFile(dstPath)
	if err != nil {
		return 0, fmt.Errorf("count stamped pages: %w", err)
	}
	return pages, nil
}

// Label builds the watermark text. %p and %P expand to the page number and
// the page count; a literal % in the name is dropped so it cannot form one.
func Label(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "%", ""))
	if name == "" {
		return "Page %p/%P"
	}
	return name + " – Page %p/%P"
}
