package native

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/extractor/pdfdoc"
)

// wordGapRatio is the horizontal gap, relative to the font size, above which
// two glyphs without an explicit space belong to different words.
const wordGapRatio = 0.2

// TextLine is a run of glyphs sharing a baseline band.
type TextLine struct {
	Text string
	BBox domain.BBox
}

// BuildLines groups glyphs into lines: a glyph joins the current line when its
// top is within tolerance of the line's first glyph.
func BuildLines(glyphs []pdfdoc.Glyph, tolerance float64) []TextLine {
	if len(glyphs) == 0 {
		return nil
	}
	ordered := slices.Clone(glyphs)
	slices.SortStableFunc(ordered, func(a, b pdfdoc.Glyph) int {
		if c := cmp.Compare(a.Top, b.Top); c != 0 {
			return c
		}
		return cmp.Compare(a.X0, b.X0)
	})

	var lines []TextLine
	current := []pdfdoc.Glyph{ordered[0]}
	for _, g := range ordered[1:] {
		if math.Abs(g.Top-current[0].Top) < tolerance {
			current = append(current, g)
			continue
		}
		if line, ok := makeLine(current); ok {
			lines = append(lines, line)
		}
		current = []pdfdoc.Glyph{g}
	}
	if line, ok := makeLine(current); ok {
		lines = append(lines, line)
	}
	return lines
}

func makeLine(glyphs []pdfdoc.Glyph) (TextLine, bool) {
	slices.SortStableFunc(glyphs, func(a, b pdfdoc.Glyph) int {
		return cmp.Compare(a.X0, b.X0)
	})

	var b strings.Builder
	bbox := domain.BBox{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	var prev *pdfdoc.Glyph
	for i := range glyphs {
		g := &glyphs[i]
		if isBlank(g.Text) {
			if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
				b.WriteByte(' ')
			}
			prev = g
			continue
		}
		if prev != nil && b.Len() > 0 && !strings.HasSuffix(b.String(), " ") && g.X0-prev.X1 > wordGapRatio*g.Size {
			b.WriteByte(' ')
		}
		b.WriteString(g.Text)
		bbox.X0 = math.Min(bbox.X0, g.X0)
		bbox.Y0 = math.Min(bbox.Y0, g.Top)
		bbox.X1 = math.Max(bbox.X1, g.X1)
		bbox.Y1 = math.Max(bbox.Y1, g.Bottom)
		prev = g
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return TextLine{}, false
	}
	return TextLine{Text: text, BBox: bbox}, true
}

func isBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}
