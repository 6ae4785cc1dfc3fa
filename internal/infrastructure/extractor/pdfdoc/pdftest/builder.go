// Package pdftest writes small uncompressed PDF files for parser tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Image is an uncompressed 8-bit image XObject.
type Image struct {
	Width      int
	Height     int
	ColorSpace string
	Filter     string
	Data       []byte
}

// Page is one page: a raw content stream plus named image resources.
type Page struct {
	Content string
	Images  map[string]Image
}

// Build returns a PDF whose pages share a Helvetica font resource /F1.
func Build(pages []Page) []byte {
	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	catalog := add("")
	pagesObj := add("")
	widths := strings.TrimSpace(strings.Repeat("500 ", 126-32+1))
	font := add(fmt.Sprintf(
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>",
		widths,
	))

	kids := make([]string, 0, len(pages))
	for _, page := range pages {
		names := make([]string, 0, len(page.Images))
		for name := range page.Images {
			names = append(names, name)
		}
		sort.Strings(names)

		var xobjects []string
		for _, name := range names {
			img := page.Images[name]
			cs := img.ColorSpace
			if cs == "" {
				cs = "DeviceRGB"
			}
			filter := ""
			if img.Filter != "" {
				filter = " /Filter /" + img.Filter
			}
			id := add(fmt.Sprintf(
				"<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /%s /BitsPerComponent 8%s /Length %d >>\nstream\n%s\nendstream",
				img.Width, img.Height, cs, filter, len(img.Data), img.Data,
			))
			xobjects = append(xobjects, fmt.Sprintf("/%s %d 0 R", name, id))
		}

		content := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(page.Content), page.Content))
		resources := fmt.Sprintf("<< /Font << /F1 %d 0 R >>", font)
		if len(xobjects) > 0 {
			resources += " /XObject << " + strings.Join(xobjects, " ") + " >>"
		}
		resources += " >>"
		pageObj := add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /Resources %s /Contents %d 0 R >>", pagesObj, resources, content))
		kids = append(kids, fmt.Sprintf("%d 0 R", pageObj))
	}

	objects[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj)
	objects[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, catalog, xref)
	return buf.Bytes()
}

// WriteFile builds the PDF into the test's temp dir and returns its path.
func WriteFile(t testing.TB, name string, pages []Page) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, Build(pages), 0o644); err != nil {
		t.Fatalf("write test pdf: %v", err)
	}
	return path
}

// Text returns a content stream drawing one line of text per entry at the given baselines.
func Text(x, y, size float64, lines ...string) string {
	var b strings.Builder
	for i, line := range lines {
		escaped := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(line)
		fmt.Fprintf(&b, "BT /F1 %g Tf %g %g Td (%s) Tj ET\n", size, x, y-float64(i)*size*1.5, escaped)
	}
	return b.String()
}
