// Package export renders a board to PDF.
package export

import (
	"fmt"
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"

	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
)

const (
	// Margin is the blank border around the drawing, in points.
	Margin = 24.0

	arrowHeadLength = 15.0
	arrowHeadAngle  = math.Pi / 6
)

// EmptyPage is the page size used for a board without shapes (A4, points).
var EmptyPage = gofpdf.SizeType{Wd: 595.28, Ht: 841.89}

// PDF renders shapes in z-order onto a single page sized to fit them. One
// world unit maps to one point.
func PDF(w io.Writer, title string, shapes []shape.Shape) error {
	size := EmptyPage
	var origin geom.Point
	if bounds, ok := extents(shapes); ok {
		size = gofpdf.SizeType{Wd: bounds.Width() + 2*Margin, Ht: bounds.Height() + 2*Margin}
		origin = geom.Point{X: bounds.X1 - Margin, Y: bounds.Y1 - Margin}
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           size,
	})
	pdf.SetTitle(title, true)
	pdf.SetCreator("inkdrift", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")

	for _, s := range shapes {
		drawShape(pdf, s, origin)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// extents is the union of the drawn area of every shape, including rotation
// and stroke width.
func extents(shapes []shape.Shape) (geom.Box, bool) {
	if len(shapes) == 0 {
		return geom.Box{}, false
	}
	out := geom.Box{X1: math.Inf(1), Y1: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}
	for _, s := range shapes {
		for _, p := range outline(s) {
			out.X1 = math.Min(out.X1, p.X)
			out.Y1 = math.Min(out.Y1, p.Y)
			out.X2 = math.Max(out.X2, p.X)
			out.Y2 = math.Max(out.Y2, p.Y)
		}
	}
	return out.Expand(shape.DefaultLineWidth), true
}

// outline returns the points that bound s in world space.
func outline(s shape.Shape) []geom.Point {
	switch v := s.(type) {
	case *shape.Box:
		return corners(v)
	default:
		return s.Anchors()
	}
}

func corners(b *shape.Box) []geom.Point {
	n := b.Rect.Normalize()
	c := n.Center()
	hw, hh := n.Width()/2, n.Height()/2
	local := []geom.Point{{X: -hw, Y: -hh}, {X: hw, Y: -hh}, {X: hw, Y: hh}, {X: -hw, Y: hh}}
	out := make([]geom.Point, len(local))
	for i, p := range local {
		out[i] = geom.LocalToWorld(p, b.Angle, c)
	}
	return out
}

func drawShape(pdf *gofpdf.Fpdf, s shape.Shape, origin geom.Point) {
	r, g, b := parseColor(s.Color())
	pt := func(p geom.Point) gofpdf.PointType {
		return gofpdf.PointType{X: p.X - origin.X, Y: p.Y - origin.Y}
	}

	switch v := s.(type) {
	case *shape.Box:
		pdf.SetFillColor(r, g, b)
		pdf.SetDrawColor(r, g, b)
		pdf.SetLineWidth(1)
		if v.Kind() == shape.KindEllipse {
			n := v.Rect.Normalize()
			c := pt(n.Center())
			// gofpdf turns counter-clockwise as seen on the page; board angles turn clockwise.
			pdf.Ellipse(c.X, c.Y, n.Width()/2, n.Height()/2, -v.Angle*180/math.Pi, "DF")
			return
		}
		cs := corners(v)
		poly := make([]gofpdf.PointType, len(cs))
		for i, p := range cs {
			poly[i] = pt(p)
		}
		pdf.Polygon(poly, "DF")

	case *shape.Stroke:
		pdf.SetDrawColor(r, g, b)
		pdf.SetLineWidth(shape.DefaultLineWidth)
		a, z := pt(v.Start), pt(v.End)
		pdf.Line(a.X, a.Y, z.X, z.Y)
		if v.Kind() == shape.KindArrow {
			for _, h := range arrowHead(v.Start, v.End) {
				p := pt(h)
				pdf.Line(z.X, z.Y, p.X, p.Y)
			}
		}

	case *shape.Path:
		if len(v.Points) == 0 {
			return
		}
		width := v.Width
		if width <= 0 {
			width = shape.DefaultLineWidth
		}
		pdf.SetDrawColor(r, g, b)
		pdf.SetLineWidth(width)
		first := pt(v.Points[0])
		pdf.MoveTo(first.X, first.Y)
		for _, p := range v.Points[1:] {
			q := pt(p)
			pdf.LineTo(q.X, q.Y)
		}
		pdf.DrawPath("D")
	}
}

// arrowHead returns the two barb tips of an arrow pointing at end.
func arrowHead(start, end geom.Point) [2]geom.Point {
	angle := math.Atan2(end.Y-start.Y, end.X-start.X)
	var out [2]geom.Point
	for i, side := range []float64{-1, 1} {
		a := angle + math.Pi + side*arrowHeadAngle
		out[i] = end.Add(arrowHeadLength*math.Cos(a), arrowHeadLength*math.Sin(a))
	}
	return out
}
