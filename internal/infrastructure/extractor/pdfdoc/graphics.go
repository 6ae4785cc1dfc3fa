package pdfdoc

import (
	"math"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

const maxFormDepth = 4

// Segment is a painted straight line in top-left origin page coordinates.
type Segment struct {
	X0, Y0, X1, Y1 float64
}

// ImagePlacement is one drawing of an image XObject on the page.
type ImagePlacement struct {
	Name   string
	BBox   domain.BBox
	Width  int
	Height int
	stream pdf.Value
}

type Graphics struct {
	Segments []Segment
	Images   []ImagePlacement
}

// Graphics walks the content stream (and nested form XObjects) collecting
// stroked or filled line segments and image placements.
func (p *Page) Graphics() (g Graphics, err error) {
	defer recoverInto(&err, "read page graphics")

	w := &graphicsWalker{box: p.box}
	w.walk(p.page.V.Key("Contents"), p.page.Resources(), identity, 0)
	return w.out, nil
}

type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m×n, the transform applying m first and then n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return x*m[0] + y*m[2] + m[4], x*m[1] + y*m[3] + m[5]
}

func matrixFrom(values []pdf.Value) matrix {
	var m matrix
	for i := range m {
		m[i] = values[i].Float64()
	}
	return m
}

type point struct{ x, y float64 }

type graphicsWalker struct {
	box box
	out Graphics
}

func (w *graphicsWalker) walk(contents, resources pdf.Value, base matrix, depth int) {
	ctm := base
	var saved []matrix
	var pending []Segment
	var current, start point

	handle := func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "q":
			saved = append(saved, ctm)
		case "Q":
			if len(saved) > 0 {
				ctm = saved[len(saved)-1]
				saved = saved[:len(saved)-1]
			}
		case "cm":
			if len(args) == 6 {
				ctm = matrixFrom(args).mul(ctm)
			}
		case "m":
			if len(args) == 2 {
				current = w.point(ctm, args[0].Float64(), args[1].Float64())
				start = current
			}
		case "l":
			if len(args) == 2 {
				next := w.point(ctm, args[0].Float64(), args[1].Float64())
				pending = append(pending, Segment{X0: current.x, Y0: current.y, X1: next.x, Y1: next.y})
				current = next
			}
		case "h":
			pending = append(pending, Segment{X0: current.x, Y0: current.y, X1: start.x, Y1: start.y})
			current = start
		case "re":
			if len(args) == 4 {
				x, y, rw, rh := args[0].Float64(), args[1].Float64(), args[2].Float64(), args[3].Float64()
				corners := []point{
					w.point(ctm, x, y),
					w.point(ctm, x+rw, y),
					w.point(ctm, x+rw, y+rh),
					w.point(ctm, x, y+rh),
				}
				for i := range corners {
					a, b := corners[i], corners[(i+1)%len(corners)]
					pending = append(pending, Segment{X0: a.x, Y0: a.y, X1: b.x, Y1: b.y})
				}
				current, start = corners[0], corners[0]
			}
		case "S", "s", "f", "F", "f*", "B", "B*", "b", "b*":
			w.out.Segments = append(w.out.Segments, pending...)
			pending = pending[:0]
		case "n":
			pending = pending[:0]
		case "Do":
			if len(args) == 1 {
				w.drawXObject(args[0].Name(), resources, ctm, depth)
			}
		}
	}

	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			pdf.Interpret(contents.Index(i), handle)
		}
		return
	}
	pdf.Interpret(contents, handle)
}

func (w *graphicsWalker) point(ctm matrix, x, y float64) point {
	ux, uy := ctm.apply(x, y)
	px, py := w.box.toPage(ux, uy)
	return point{x: px, y: py}
}

func (w *graphicsWalker) drawXObject(name string, resources pdf.Value, ctm matrix, depth int) {
	xobj := resources.Key("XObject").Key(name)
	if xobj.IsNull() {
		return
	}

	switch xobj.Key("Subtype").Name() {
	case "Image":
		corners := []point{
			w.point(ctm, 0, 0),
			w.point(ctm, 1, 0),
			w.point(ctm, 0, 1),
			w.point(ctm, 1, 1),
		}
		bbox := domain.BBox{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
		for _, c := range corners {
			bbox.X0 = math.Min(bbox.X0, c.x)
			bbox.Y0 = math.Min(bbox.Y0, c.y)
			bbox.X1 = math.Max(bbox.X1, c.x)
			bbox.Y1 = math.Max(bbox.Y1, c.y)
		}
		w.out.Images = append(w.out.Images, ImagePlacement{
			Name:   name,
			BBox:   bbox,
			Width:  int(xobj.Key("Width").Int64()),
			Height: int(xobj.Key("Height").Int64()),
			stream: xobj,
		})
	case "Form":
		if depth >= maxFormDepth {
			return
		}
		form := identity
		if m := xobj.Key("Matrix"); m.Kind() == pdf.Array && m.Len() == 6 {
			values := make([]pdf.Value, 6)
			for i := range values {
				values[i] = m.Index(i)
			}
			form = matrixFrom(values)
		}
		formResources := xobj.Key("Resources")
		if formResources.IsNull() {
			formResources = resources
		}
		w.walk(xobj, formResources, form.mul(ctm), depth+1)
	}
}
