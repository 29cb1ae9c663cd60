// Package shape defines the drawable primitives of a board and the ordered
// registry that holds them.
//
// Shape is a closed variant: only *Box, *Stroke and *Path implement it. Call
// sites use the capability methods instead of switching on the kind.
package shape

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/typeid"
)

type Kind string

const (
	KindRect    Kind = "rect"
	KindEllipse Kind = "ellipse"
	KindLine    Kind = "line"
	KindArrow   Kind = "arrow"
	KindPencil  Kind = "pencil"
)

const (
	DefaultSize      = 30.0
	DefaultLineWidth = 5.0

	// StrokeHitTolerance is the world distance under which a line or arrow is hit.
	StrokeHitTolerance = 10.0
	// PathSampleStep is the stride used when hit testing pencil points.
	PathSampleStep = 3
)

var ErrInvalidShape = errors.New("invalid shape")

// Palette is the set of pastel colors handed out to new shapes.
var Palette = []string{
	"hsl(340, 60%, 80%)",
	"hsl(200, 50%, 80%)",
	"hsl(140, 50%, 80%)",
	"hsl(50,  60%, 80%)",
	"hsl(280, 50%, 80%)",
	"hsl(10,  60%, 80%)",
}

func RandomColor() string {
	return Palette[rand.IntN(len(Palette))]
}

// Shape is a drawable primitive with a stable identifier.
type Shape interface {
	ID() string
	Kind() Kind
	Color() string

	// Bounds returns the normalized extents. For rotatable shapes the extents
	// are those of the unrotated rectangle; Rotation carries the angle.
	Bounds() geom.Box
	Rotatable() bool
	Rotation() float64
	SetRotation(angle float64)

	// Anchors are the points that define the geometry: two corners for boxes
	// and strokes, every point for paths.
	Anchors() []geom.Point
	SetAnchors(pts []geom.Point)

	Translate(dx, dy float64)
	// Transform applies m to every anchor.
	Transform(m geom.Matrix2D)
	// Orbit rotates the geometry about pivot. Boxes move their centre and keep
	// their extents; strokes and paths rotate each anchor.
	Orbit(angle float64, pivot geom.Point)

	// HitTest reports whether p touches the shape and how far it is from it.
	HitTest(p geom.Point) (float64, bool)

	Clone() Shape

	base() *Base
}

// Base carries the fields shared by every kind.
type Base struct {
	id    string
	kind  Kind
	color string
}

func (b *Base) ID() string            { return b.id }
func (b *Base) Kind() Kind            { return b.kind }
func (b *Base) Color() string         { return b.color }
func (b *Base) SetColor(color string) { b.color = color }
func (b *Base) base() *Base           { return b }
func (b *Base) Rotatable() bool       { return false }
func (b *Base) Rotation() float64     { return 0 }
func (b *Base) SetRotation(float64)   {}

func newBase(id string, k Kind, c string) Base {
	return Base{id: id, kind: k, color: c}
}

// Box is a rectangle or ellipse rotated about its centre.
type Box struct {
	Base
	Rect  geom.Box
	Angle float64
}

func NewBox(id string, kind Kind, color string, rect geom.Box, angle float64) *Box {
	return &Box{Base: newBase(id, kind, color), Rect: rect, Angle: angle}
}

func (s *Box) Bounds() geom.Box         { return s.Rect.Normalize() }
func (s *Box) Rotatable() bool          { return true }
func (s *Box) Rotation() float64        { return s.Angle }
func (s *Box) SetRotation(a float64)    { s.Angle = a }
func (s *Box) Translate(dx, dy float64) { s.Rect = s.Rect.Translate(dx, dy) }

func (s *Box) Anchors() []geom.Point {
	return []geom.Point{{X: s.Rect.X1, Y: s.Rect.Y1}, {X: s.Rect.X2, Y: s.Rect.Y2}}
}

func (s *Box) SetAnchors(pts []geom.Point) {
	if len(pts) != 2 {
		return
	}
	s.Rect = geom.Box{X1: pts[0].X, Y1: pts[0].Y, X2: pts[1].X, Y2: pts[1].Y}
}

func (s *Box) Transform(m geom.Matrix2D) { transformAnchors(s, m) }

func (s *Box) Orbit(angle float64, pivot geom.Point) {
	c := s.Rect.Center()
	moved := geom.RotateAround(c, angle, pivot)
	s.Rect = s.Rect.Translate(moved.X-c.X, moved.Y-c.Y)
}

func (s *Box) HitTest(p geom.Point) (float64, bool) {
	n := s.Rect.Normalize()
	local := geom.WorldToLocal(p, s.Angle, n.Center())
	hw, hh := n.Width()/2, n.Height()/2
	if local.X >= -hw && local.X <= hw && local.Y >= -hh && local.Y <= hh {
		return 0, true
	}
	return math.Inf(1), false
}

func (s *Box) Clone() Shape {
	c := *s
	return &c
}

// Stroke is a line or arrow between two endpoints. Its orientation comes from
// the endpoints, so it carries no rotation.
type Stroke struct {
	Base
	Start geom.Point
	End   geom.Point
}

func NewStroke(id string, kind Kind, color string, start, end geom.Point) *Stroke {
	return &Stroke{Base: newBase(id, kind, color), Start: start, End: end}
}

func (s *Stroke) Bounds() geom.Box {
	return geom.Box{X1: s.Start.X, Y1: s.Start.Y, X2: s.End.X, Y2: s.End.Y}.Normalize()
}

func (s *Stroke) Anchors() []geom.Point { return []geom.Point{s.Start, s.End} }

func (s *Stroke) SetAnchors(pts []geom.Point) {
	if len(pts) != 2 {
		return
	}
	s.Start, s.End = pts[0], pts[1]
}

func (s *Stroke) Translate(dx, dy float64) {
	s.Start = s.Start.Add(dx, dy)
	s.End = s.End.Add(dx, dy)
}

func (s *Stroke) Transform(m geom.Matrix2D) { transformAnchors(s, m) }

func (s *Stroke) Orbit(angle float64, pivot geom.Point) {
	s.Start = geom.RotateAround(s.Start, angle, pivot)
	s.End = geom.RotateAround(s.End, angle, pivot)
}

func (s *Stroke) HitTest(p geom.Point) (float64, bool) {
	d := geom.PointToSegmentDistance(p.X, p.Y, s.Start.X, s.Start.Y, s.End.X, s.End.Y)
	return d, d < StrokeHitTolerance
}

func (s *Stroke) Clone() Shape {
	c := *s
	return &c
}

// Path is a free-form pencil stroke.
type Path struct {
	Base
	Points []geom.Point
	Width  float64
}

func NewPath(id, color string, points []geom.Point, width float64) *Path {
	return &Path{Base: newBase(id, KindPencil, color), Points: points, Width: width}
}

func (s *Path) Bounds() geom.Box {
	if len(s.Points) == 0 {
		return geom.Box{}
	}
	b := geom.Box{X1: math.Inf(1), Y1: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}
	for _, p := range s.Points {
		b.X1 = math.Min(b.X1, p.X)
		b.Y1 = math.Min(b.Y1, p.Y)
		b.X2 = math.Max(b.X2, p.X)
		b.Y2 = math.Max(b.Y2, p.Y)
	}
	return b
}

func (s *Path) Anchors() []geom.Point {
	return append([]geom.Point(nil), s.Points...)
}

func (s *Path) SetAnchors(pts []geom.Point) {
	s.Points = append(s.Points[:0:0], pts...)
}

func (s *Path) Translate(dx, dy float64) {
	for i := range s.Points {
		s.Points[i] = s.Points[i].Add(dx, dy)
	}
}

func (s *Path) Transform(m geom.Matrix2D) { transformAnchors(s, m) }

func (s *Path) Orbit(angle float64, pivot geom.Point) {
	for i := range s.Points {
		s.Points[i] = geom.RotateAround(s.Points[i], angle, pivot)
	}
}

func (s *Path) HitTest(p geom.Point) (float64, bool) {
	tol := math.Max(1, s.Width/2)
	best := math.Inf(1)
	for i := 0; i < len(s.Points); i += PathSampleStep {
		best = math.Min(best, p.Dist(s.Points[i]))
	}
	if n := len(s.Points); n > 0 {
		best = math.Min(best, p.Dist(s.Points[n-1]))
	}
	return best, best < tol
}

func (s *Path) Clone() Shape {
	c := *s
	c.Points = append([]geom.Point(nil), s.Points...)
	return &c
}

func transformAnchors(s Shape, m geom.Matrix2D) {
	pts := s.Anchors()
	for i, p := range pts {
		pts[i] = m.Apply(p)
	}
	s.SetAnchors(pts)
}

// WithID returns a deep copy of s carrying a different identifier.
func WithID(s Shape, id string) Shape {
	c := s.Clone()
	c.base().id = id
	return c
}

// Options describes a shape to create. Boxes take either Corners or a Center
// (default 30x30); strokes need Corners; pencils need at least two points.
type Options struct {
	Kind      Kind
	Color     string
	Rotation  float64
	Center    *geom.Point
	Corners   *geom.Box
	Points    []geom.Point
	LineWidth float64
}

// New builds a shape with a fresh identifier.
func New(opts Options) (Shape, error) {
	kind := opts.Kind
	if kind == "" {
		kind = KindRect
	}
	color := opts.Color
	if color == "" {
		color = RandomColor()
	}
	id := typeid.NewShapeID()

	switch kind {
	case KindRect, KindEllipse:
		switch {
		case opts.Corners != nil:
			return NewBox(id, kind, color, *opts.Corners, opts.Rotation), nil
		case opts.Center != nil:
			return NewBox(id, kind, color, geom.BoxAround(*opts.Center, DefaultSize, DefaultSize), opts.Rotation), nil
		}
		return nil, fmt.Errorf("%w: missing coordinates for %s", ErrInvalidShape, kind)
	case KindLine, KindArrow:
		if opts.Corners == nil {
			return nil, fmt.Errorf("%w: missing coordinates for %s", ErrInvalidShape, kind)
		}
		c := *opts.Corners
		return NewStroke(id, kind, color, geom.Point{X: c.X1, Y: c.Y1}, geom.Point{X: c.X2, Y: c.Y2}), nil
	case KindPencil:
		if len(opts.Points) < 2 {
			return nil, fmt.Errorf("%w: pencil needs at least 2 points, got %d", ErrInvalidShape, len(opts.Points))
		}
		width := opts.LineWidth
		if width <= 0 {
			width = DefaultLineWidth
		}
		return NewPath(id, color, append([]geom.Point(nil), opts.Points...), width), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidShape, kind)
	}
}
