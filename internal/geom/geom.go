// Package geom holds the pure 2D helpers shared by the shape model, the spatial
// index and the transform engine.
//
// World space is Y-down, the same orientation as the screen. Positive angles
// rotate from +X towards +Y (clockwise on screen).
package geom

import "math"

// Point is a position in world or screen space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by (dx, dy).
func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Sub returns the vector p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Box is an axis-aligned rectangle given by two opposite corners. The corners
// are not required to be ordered; use Normalize before comparing extents.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Normalize orders the corners so that X1 <= X2 and Y1 <= Y2.
func (b Box) Normalize() Box {
	return Box{
		X1: math.Min(b.X1, b.X2),
		Y1: math.Min(b.Y1, b.Y2),
		X2: math.Max(b.X1, b.X2),
		Y2: math.Max(b.Y1, b.Y2),
	}
}

// Width returns X2 - X1.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns Y2 - Y1.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Center returns the midpoint of the box.
func (b Box) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Translate returns the box moved by (dx, dy).
func (b Box) Translate(dx, dy float64) Box {
	return Box{X1: b.X1 + dx, Y1: b.Y1 + dy, X2: b.X2 + dx, Y2: b.Y2 + dy}
}

// Expand grows the box by pad on every side.
func (b Box) Expand(pad float64) Box {
	return Box{X1: b.X1 - pad, Y1: b.Y1 - pad, X2: b.X2 + pad, Y2: b.Y2 + pad}
}

// Contains reports whether p lies inside the normalized box, edges included.
func (b Box) Contains(p Point) bool {
	n := b.Normalize()
	return p.X >= n.X1 && p.X <= n.X2 && p.Y >= n.Y1 && p.Y <= n.Y2
}

// Intersects reports whether the two boxes overlap, touching edges included.
func (b Box) Intersects(o Box) bool {
	a := b.Normalize()
	c := o.Normalize()
	return !(a.X2 < c.X1 || a.X1 > c.X2 || a.Y2 < c.Y1 || a.Y1 > c.Y2)
}

// BoxAround returns the box centred on c with the given width and height.
func BoxAround(c Point, w, h float64) Box {
	return Box{X1: c.X - w/2, Y1: c.Y - h/2, X2: c.X + w/2, Y2: c.Y + h/2}
}

// PointToSegmentDistance returns the distance from (px, py) to the segment
// (x1, y1)-(x2, y2). The projection is clamped to the segment.
func PointToSegmentDistance(px, py, x1, y1, x2, y2 float64) float64 {
	a := px - x1
	b := py - y1
	c := x2 - x1
	d := y2 - y1
	len2 := c*c + d*d
	if len2 == 0 {
		return math.Hypot(a, b)
	}
	t := (a*c + b*d) / len2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(x1+t*c), py-(y1+t*d))
}

// LocalToWorld rotates p by angle and then moves it by center.
func LocalToWorld(p Point, angle float64, center Point) Point {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return Point{
		X: p.X*cos - p.Y*sin + center.X,
		Y: p.X*sin + p.Y*cos + center.Y,
	}
}

// WorldToLocal is the inverse of LocalToWorld for the same angle and center.
func WorldToLocal(p Point, angle float64, center Point) Point {
	dx := p.X - center.X
	dy := p.Y - center.Y
	cos := math.Cos(-angle)
	sin := math.Sin(-angle)
	return Point{
		X: dx*cos - dy*sin,
		Y: dx*sin + dy*cos,
	}
}

// RotateAround rotates p by angle about center.
func RotateAround(p Point, angle float64, center Point) Point {
	return LocalToWorld(p.Sub(center), angle, center)
}
