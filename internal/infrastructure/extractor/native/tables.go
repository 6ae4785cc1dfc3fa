package native

import (
	"cmp"
	"fmt"
	"html"
	"math"
	"slices"
	"strings"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/extractor/pdfdoc"
)

const maxDescribedColumns = 5

var tableKeywords = []string{"total", "somme", "nombre", "montant", "quantité", "prix"}

// TableSettings are the tolerances of the ruling-line table detector, in points.
type TableSettings struct {
	SnapTolerance         float64
	JoinTolerance         float64
	EdgeMinLength         float64
	IntersectionTolerance float64
}

// edge is an axis-aligned ruling line: pos is y for horizontal edges and x
// for vertical ones, [from, to] the extent along the other axis.
type edge struct {
	pos, from, to float64
	horizontal    bool
}

func (e edge) length() float64 { return e.to - e.from }

// DetectTables finds grids formed by ruling lines and fills their cells with
// the glyphs whose centers fall inside. Detections rejected by KeepTable are
// dropped.
func DetectTables(segments []pdfdoc.Segment, glyphs []pdfdoc.Glyph, settings TableSettings, lineTolerance float64) []domain.TableElement {
	horizontal, vertical := splitEdges(segments, settings.SnapTolerance)
	horizontal = filterEdges(joinEdges(snapEdges(horizontal, settings.SnapTolerance), settings.JoinTolerance), settings.EdgeMinLength)
	vertical = filterEdges(joinEdges(snapEdges(vertical, settings.SnapTolerance), settings.JoinTolerance), settings.EdgeMinLength)
	if len(horizontal) < 2 || len(vertical) < 2 {
		return nil
	}

	var tables []domain.TableElement
	for _, group := range connectedGrids(horizontal, vertical, settings.IntersectionTolerance) {
		ys := distinctPositions(group.horizontal, settings.SnapTolerance)
		xs := distinctPositions(group.vertical, settings.SnapTolerance)
		if len(ys) < 2 || len(xs) < 2 {
			continue
		}
		rows := fillCells(xs, ys, glyphs, lineTolerance)
		if !KeepTable(rows) {
			continue
		}
		tables = append(tables, domain.TableElement{
			Rows:        rows,
			BBox:        domain.BBox{X0: xs[0], Y0: ys[0], X1: xs[len(xs)-1], Y1: ys[len(ys)-1]},
			HTML:        TableHTML(rows),
			Description: DescribeTable(rows),
		})
	}
	return tables
}

func splitEdges(segments []pdfdoc.Segment, snap float64) (horizontal, vertical []edge) {
	for _, s := range segments {
		dx, dy := math.Abs(s.X1-s.X0), math.Abs(s.Y1-s.Y0)
		switch {
		case dy <= snap && dx > 0:
			horizontal = append(horizontal, edge{
				pos: (s.Y0 + s.Y1) / 2, from: math.Min(s.X0, s.X1), to: math.Max(s.X0, s.X1), horizontal: true,
			})
		case dx <= snap && dy > 0:
			vertical = append(vertical, edge{
				pos: (s.X0 + s.X1) / 2, from: math.Min(s.Y0, s.Y1), to: math.Max(s.Y0, s.Y1),
			})
		}
	}
	return horizontal, vertical
}

// snapEdges moves edges whose positions lie within tolerance of each other
// onto their mean position.
func snapEdges(edges []edge, tolerance float64) []edge {
	if len(edges) == 0 {
		return nil
	}
	sorted := slices.Clone(edges)
	slices.SortFunc(sorted, func(a, b edge) int { return cmp.Compare(a.pos, b.pos) })

	out := make([]edge, 0, len(sorted))
	cluster := []edge{sorted[0]}
	flush := func() {
		mean := 0.0
		for _, e := range cluster {
			mean += e.pos
		}
		mean /= float64(len(cluster))
		for _, e := range cluster {
			e.pos = mean
			out = append(out, e)
		}
	}
	for _, e := range sorted[1:] {
		if e.pos-cluster[0].pos <= tolerance {
			cluster = append(cluster, e)
			continue
		}
		flush()
		cluster = []edge{e}
	}
	flush()
	return out
}

// joinEdges merges collinear edges separated by at most tolerance.
func joinEdges(edges []edge, tolerance float64) []edge {
	if len(edges) == 0 {
		return nil
	}
	sorted := slices.Clone(edges)
	slices.SortFunc(sorted, func(a, b edge) int {
		if c := cmp.Compare(a.pos, b.pos); c != 0 {
			return c
		}
		return cmp.Compare(a.from, b.from)
	})

	out := []edge{sorted[0]}
	for _, e := range sorted[1:] {
		last := &out[len(out)-1]
		if e.pos == last.pos && e.from <= last.to+tolerance {
			last.to = math.Max(last.to, e.to)
			continue
		}
		out = append(out, e)
	}
	return out
}

func filterEdges(edges []edge, minLength float64) []edge {
	out := edges[:0:0]
	for _, e := range edges {
		if e.length() >= minLength {
			out = append(out, e)
		}
	}
	return out
}

type grid struct {
	horizontal []edge
	vertical   []edge
}

func intersects(h, v edge, tolerance float64) bool {
	return v.pos >= h.from-tolerance && v.pos <= h.to+tolerance &&
		h.pos >= v.from-tolerance && h.pos <= v.to+tolerance
}

// connectedGrids groups edges into components linked by intersections and
// keeps components with at least two edges in each direction.
func connectedGrids(horizontal, vertical []edge, tolerance float64) []grid {
	parent := make([]int, len(horizontal)+len(vertical))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i, h := range horizontal {
		for j, v := range vertical {
			if intersects(h, v, tolerance) {
				parent[find(i)] = find(len(horizontal) + j)
			}
		}
	}

	byRoot := map[int]*grid{}
	var roots []int
	component := func(i int) *grid {
		root := find(i)
		g, ok := byRoot[root]
		if !ok {
			g = &grid{}
			byRoot[root] = g
			roots = append(roots, root)
		}
		return g
	}
	for i, h := range horizontal {
		g := component(i)
		g.horizontal = append(g.horizontal, h)
	}
	for j, v := range vertical {
		g := component(len(horizontal) + j)
		g.vertical = append(g.vertical, v)
	}

	var out []grid
	for _, root := range roots {
		g := byRoot[root]
		if len(g.horizontal) >= 2 && len(g.vertical) >= 2 {
			out = append(out, *g)
		}
	}
	slices.SortFunc(out, func(a, b grid) int {
		return cmp.Compare(minPos(a.horizontal), minPos(b.horizontal))
	})
	return out
}

func minPos(edges []edge) float64 {
	m := math.Inf(1)
	for _, e := range edges {
		m = math.Min(m, e.pos)
	}
	return m
}

func distinctPositions(edges []edge, tolerance float64) []float64 {
	positions := make([]float64, 0, len(edges))
	for _, e := range edges {
		positions = append(positions, e.pos)
	}
	slices.Sort(positions)

	out := positions[:0:0]
	for _, p := range positions {
		if len(out) == 0 || p-out[len(out)-1] > tolerance {
			out = append(out, p)
		}
	}
	return out
}

func fillCells(xs, ys []float64, glyphs []pdfdoc.Glyph, lineTolerance float64) [][]string {
	buckets := make([][][]pdfdoc.Glyph, len(ys)-1)
	for r := range buckets {
		buckets[r] = make([][]pdfdoc.Glyph, len(xs)-1)
	}
	for _, g := range glyphs {
		cx, cy := (g.X0+g.X1)/2, (g.Top+g.Bottom)/2
		r, c := band(ys, cy), band(xs, cx)
		if r < 0 || c < 0 {
			continue
		}
		buckets[r][c] = append(buckets[r][c], g)
	}

	rows := make([][]string, len(buckets))
	for r, row := range buckets {
		rows[r] = make([]string, len(row))
		for c, cell := range row {
			lines := BuildLines(cell, lineTolerance)
			texts := make([]string, 0, len(lines))
			for _, l := range lines {
				texts = append(texts, l.Text)
			}
			rows[r][c] = strings.Join(texts, "\n")
		}
	}
	return rows
}

// band returns i such that bounds[i] <= v < bounds[i+1], or -1.
func band(bounds []float64, v float64) int {
	for i := 0; i+1 < len(bounds); i++ {
		if v >= bounds[i] && v < bounds[i+1] {
			return i
		}
	}
	return -1
}

// KeepTable rejects empty detections and single-column detections of at most
// two rows that carry no digits, currency, percentages or table keywords;
// those are usually boxed titles.
func KeepTable(rows [][]string) bool {
	var cells []string
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				cells = append(cells, cell)
			}
		}
	}
	if len(cells) == 0 {
		return false
	}
	if columnCount(rows) == 1 && len(rows) <= 2 {
		return hasTableIndicators(strings.Join(cells, " "))
	}
	return true
}

func hasTableIndicators(text string) bool {
	lower := strings.ToLower(text)
	if strings.ContainsAny(lower, "0123456789€$£%") {
		return true
	}
	for _, kw := range tableKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func columnCount(rows [][]string) int {
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	return cols
}

// TableHTML renders rows as an HTML table with the first row as header.
func TableHTML(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<table border='1'>\n  <thead>\n    <tr>\n")
	for _, cell := range rows[0] {
		fmt.Fprintf(&b, "      <th>%s</th>\n", html.EscapeString(cell))
	}
	b.WriteString("    </tr>\n  </thead>\n")
	if len(rows) > 1 {
		b.WriteString("  <tbody>\n")
		for _, row := range rows[1:] {
			b.WriteString("    <tr>\n")
			for _, cell := range row {
				fmt.Fprintf(&b, "      <td>%s</td>\n", html.EscapeString(cell))
			}
			b.WriteString("    </tr>\n")
		}
		b.WriteString("  </tbody>\n")
	}
	b.WriteString("</table>")
	return b.String()
}

// DescribeTable summarizes shape, headers and the kind of values in French.
func DescribeTable(rows [][]string) string {
	if len(rows) == 0 {
		return "Tableau vide"
	}
	parts := []string{fmt.Sprintf("Tableau avec %d lignes et %d colonnes.", len(rows), columnCount(rows))}

	var headers []string
	for _, cell := range rows[0] {
		if cell = strings.TrimSpace(cell); cell != "" {
			headers = append(headers, strings.ReplaceAll(cell, "\n", " "))
		}
	}
	if len(headers) > 0 {
		listed := strings.Join(headers[:min(len(headers), maxDescribedColumns)], ", ")
		if len(headers) > maxDescribedColumns {
			listed += "..."
		}
		parts = append(parts, fmt.Sprintf("Colonnes: %s.", listed))
	}

	if len(rows) > 1 {
		hasCurrency, hasDigits := false, false
		for _, row := range rows[1:min(len(rows), 4)] {
			for _, cell := range row {
				hasCurrency = hasCurrency || strings.Contains(cell, "€")
				hasDigits = hasDigits || strings.ContainsAny(cell, "0123456789")
			}
		}
		switch {
		case hasCurrency:
			parts = append(parts, "Contient des montants financiers.")
		case hasDigits:
			parts = append(parts, "Contient des données numériques.")
		}
	}
	return strings.Join(parts, " ")
}
