package shape

import (
	"math"

	"github.com/inkdrift/inkdrift/internal/geom"
)

// RawBox is the bounds of one or more shapes. For a single rotatable shape the
// extents are unrotated and Rotation carries the angle; a merged box always
// has zero rotation.
type RawBox struct {
	ShapeIDs []string `json:"shapeIds"`
	X1       float64  `json:"x1"`
	Y1       float64  `json:"y1"`
	X2       float64  `json:"x2"`
	Y2       float64  `json:"y2"`
	Rotation float64  `json:"rotation"`
}

// Box returns the extents as a geom.Box.
func (r RawBox) Box() geom.Box {
	return geom.Box{X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2}
}

// BoundsOf returns the unrotated extents of s together with its rotation.
func BoundsOf(s Shape) RawBox {
	b := s.Bounds()
	return RawBox{
		ShapeIDs: []string{s.ID()},
		X1:       b.X1,
		Y1:       b.Y1,
		X2:       b.X2,
		Y2:       b.Y2,
		Rotation: s.Rotation(),
	}
}

// MergeBounds returns the union of boxes. Rotation of the inputs is ignored.
func MergeBounds(boxes []RawBox) (RawBox, bool) {
	if len(boxes) == 0 {
		return RawBox{}, false
	}
	out := RawBox{X1: math.Inf(1), Y1: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}
	for _, b := range boxes {
		out.ShapeIDs = append(out.ShapeIDs, b.ShapeIDs...)
		out.X1 = math.Min(out.X1, math.Min(b.X1, b.X2))
		out.Y1 = math.Min(out.Y1, math.Min(b.Y1, b.Y2))
		out.X2 = math.Max(out.X2, math.Max(b.X1, b.X2))
		out.Y2 = math.Max(out.Y2, math.Max(b.Y1, b.Y2))
	}
	return out, true
}

// SelectionBounds returns the bounds of the given shapes: the shape's own
// bounds for one shape, the merged box for several.
func SelectionBounds(shapes []Shape) (RawBox, bool) {
	switch len(shapes) {
	case 0:
		return RawBox{}, false
	case 1:
		return BoundsOf(shapes[0]), true
	}
	boxes := make([]RawBox, len(shapes))
	for i, s := range shapes {
		boxes[i] = BoundsOf(s)
	}
	return MergeBounds(boxes)
}
