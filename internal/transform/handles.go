package transform

import (
	"math"

	"github.com/inkdrift/inkdrift/internal/geom"
)

type Handle string

const (
	HandleNone      Handle = ""
	HandleTL        Handle = "tl"
	HandleTR        Handle = "tr"
	HandleBR        Handle = "br"
	HandleBL        Handle = "bl"
	HandleRotate    Handle = "rotate"
	HandleMove      Handle = "move"
	HandleLineStart Handle = "line-start"
	HandleLineEnd   Handle = "line-end"
)

func (h Handle) corner() bool {
	return h == HandleTL || h == HandleTR || h == HandleBR || h == HandleBL
}

// Grip reports whether h is one of the handles drawn on the box, as opposed to
// the move region inside it.
func (h Handle) Grip() bool {
	return h.corner() || h.lineEnd() || h == HandleRotate
}

func (h Handle) lineEnd() bool {
	return h == HandleLineStart || h == HandleLineEnd
}

func (h Handle) left() bool { return h == HandleTL || h == HandleBL }

func (h Handle) top() bool { return h == HandleTL || h == HandleTR }

// handleSpec places a handle as a fraction of the screen box size, relative to
// its centre. A non-nil zone replaces the radius test.
type handleSpec struct {
	handle Handle
	at     geom.Point
	zone   *geom.Box
}

// boxHandles are tested in order; corners come before the rotate zone.
var boxHandles = []handleSpec{
	{handle: HandleTL, at: geom.Point{X: -0.5, Y: -0.5}},
	{handle: HandleTR, at: geom.Point{X: 0.5, Y: -0.5}},
	{handle: HandleBR, at: geom.Point{X: 0.5, Y: 0.5}},
	{handle: HandleBL, at: geom.Point{X: -0.5, Y: 0.5}},
	{handle: HandleRotate, at: geom.Point{X: 0, Y: -0.7}, zone: &geom.Box{X1: -0.5, Y1: -1, X2: 0.5, Y2: -0.5}},
}

// HandlePos is a handle and its screen position, for drawing.
type HandlePos struct {
	Handle Handle
	Screen geom.Point
}

// screenBox is the visual box projected to screen space.
type screenBox struct {
	center   geom.Point
	width    float64
	height   float64
	rotation float64
}

func (s screenBox) local(screen geom.Point) geom.Point {
	return geom.WorldToLocal(screen, s.rotation, s.center)
}

func (s screenBox) toScreen(frac geom.Point) geom.Point {
	return geom.LocalToWorld(geom.Point{X: frac.X * s.width, Y: frac.Y * s.height}, s.rotation, s.center)
}

func (s screenBox) inside(local geom.Point) bool {
	return math.Abs(local.X) <= s.width/2 && math.Abs(local.Y) <= s.height/2
}

func (s screenBox) inZone(local geom.Point, zone geom.Box) bool {
	return local.X >= zone.X1*s.width && local.X <= zone.X2*s.width &&
		local.Y >= zone.Y1*s.height && local.Y <= zone.Y2*s.height
}
