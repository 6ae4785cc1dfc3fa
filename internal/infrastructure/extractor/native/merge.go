package native

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

// flowElement is anything placed in the page's reading flow.
type flowElement struct {
	top  float64
	text string
}

func tableMarker(t domain.TableElement) string {
	return fmt.Sprintf("[TABLEAU: %s]", t.Description)
}

func imageMarker(img domain.ImageElement) string {
	switch img.ImageType {
	case domain.ImageLogo:
		return fmt.Sprintf("[LOGO: %s]", orDefault(img.Description, "Logo sans description"))
	case domain.ImageIcon:
		return fmt.Sprintf("[ICÔNE: %s]", orDefault(img.Description, "Icône sans description"))
	default:
		return fmt.Sprintf("[IMAGE: %s]", orDefault(img.Description, "Image sans description"))
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// MergeReadingOrder lays text lines, tables and images out top to bottom.
// Elements whose tops are within tolerance of the first element of a
// reading line share that line, separated by a space.
func MergeReadingOrder(lines []TextLine, tables []domain.TableElement, images []domain.ImageElement, tolerance float64) string {
	elements := make([]flowElement, 0, len(lines)+len(tables)+len(images))
	for _, l := range lines {
		elements = append(elements, flowElement{top: l.BBox.Y0, text: l.Text})
	}
	for _, t := range tables {
		elements = append(elements, flowElement{top: t.BBox.Y0, text: tableMarker(t)})
	}
	for _, img := range images {
		elements = append(elements, flowElement{top: img.BBox.Y0, text: imageMarker(img)})
	}
	if len(elements) == 0 {
		return ""
	}
	slices.SortStableFunc(elements, func(a, b flowElement) int { return cmp.Compare(a.top, b.top) })

	var out []string
	current := []string{elements[0].text}
	anchor := elements[0].top
	for _, e := range elements[1:] {
		if math.Abs(e.top-anchor) > tolerance {
			out = append(out, strings.Join(current, " "))
			current = []string{e.text}
			anchor = e.top
			continue
		}
		current = append(current, e.text)
	}
	out = append(out, strings.Join(current, " "))
	return strings.Join(out, "\n")
}
