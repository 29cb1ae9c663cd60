// Package transform implements the bounding-box gestures: move, resize and
// rotate of the current selection.
//
// The engine keeps a raw box around the selected shapes and a visual box that
// is padded for multi-shape selections. A gesture starts on a handle, captures
// a baseline copy of every member and recomputes each member from that
// baseline on every pointer move, so no error accumulates across events.
// Mutated shapes go to a Sink; the engine never writes the registry itself.
package transform

import (
	"log/slog"
	"math"

	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
)

const (
	// BoxOffset pads the visual box of multi-shape selections.
	BoxOffset = 8.0
	// HandleSize is the on-screen diameter of a handle.
	HandleSize = 10.0
	// MinSize is the smallest width or height a resize can produce.
	MinSize = 10.0
)

type State int

const (
	Idle State = iota
	Dragging
	Resizing
	Rotating
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	case Rotating:
		return "rotating"
	}
	return "idle"
}

// Projector converts between world and screen coordinates. Both spaces are
// Y-down.
type Projector interface {
	WorldToScreen(p geom.Point) geom.Point
	ScreenToWorld(p geom.Point) geom.Point
}

// Sink receives every shape changed by a gesture.
type Sink interface {
	Update(s shape.Shape)
}

// VisualBox is the box drawn around the selection.
type VisualBox struct {
	shape.RawBox
	Center geom.Point
}

func (v VisualBox) Width() float64  { return v.X2 - v.X1 }
func (v VisualBox) Height() float64 { return v.Y2 - v.Y1 }

type Engine struct {
	proj   Projector
	sink   Sink
	logger *slog.Logger

	members []shape.Shape
	raw     *shape.RawBox

	state  State
	handle Handle
	hover  Handle

	startPointer geom.Point
	startBox     shape.RawBox
	baseline     []shape.Shape
}

func NewEngine(proj Projector, sink Sink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{proj: proj, sink: sink, logger: logger}
}

func (e *Engine) State() State { return e.state }

// Active reports whether a gesture is in progress.
func (e *Engine) Active() bool { return e.state != Idle }

// ActiveHandle is the handle of the gesture in progress.
func (e *Engine) ActiveHandle() Handle { return e.handle }

// Hover is the handle under the pointer at the last idle move.
func (e *Engine) Hover() Handle { return e.hover }

// Refresh recomputes the box from the selected shapes. It is ignored while a
// gesture is in progress, since the gesture owns the box until pointer-up.
func (e *Engine) Refresh(selected []shape.Shape) {
	if e.Active() {
		return
	}
	e.members = e.members[:0]
	for _, s := range selected {
		e.members = append(e.members, s.Clone())
	}
	box, ok := shape.SelectionBounds(e.members)
	if !ok {
		e.raw = nil
		return
	}
	e.raw = &box
}

// Clear drops the box and any gesture in progress.
func (e *Engine) Clear() {
	e.reset()
	e.raw = nil
	e.members = nil
}

// Box returns the raw box, unpadded.
func (e *Engine) Box() (shape.RawBox, bool) {
	if e.raw == nil {
		return shape.RawBox{}, false
	}
	return *e.raw, true
}

// Visual returns the padded box drawn around the selection.
func (e *Engine) Visual() (VisualBox, bool) {
	if e.raw == nil {
		return VisualBox{}, false
	}
	offset := BoxOffset
	if len(e.members) == 1 {
		offset = 0
	}
	r := *e.raw
	v := VisualBox{
		RawBox: shape.RawBox{
			ShapeIDs: r.ShapeIDs,
			X1:       r.X1 - offset,
			Y1:       r.Y1 - offset,
			X2:       r.X2 + offset,
			Y2:       r.Y2 + offset,
			Rotation: r.Rotation,
		},
		Center: r.Box().Center(),
	}
	return v, true
}

func (e *Engine) screenBox() (screenBox, bool) {
	v, ok := e.Visual()
	if !ok {
		return screenBox{}, false
	}
	c1 := e.proj.WorldToScreen(geom.Point{X: v.Center.X - v.Width()/2, Y: v.Center.Y - v.Height()/2})
	c2 := e.proj.WorldToScreen(geom.Point{X: v.Center.X + v.Width()/2, Y: v.Center.Y + v.Height()/2})
	return screenBox{
		center:   e.proj.WorldToScreen(v.Center),
		width:    math.Abs(c2.X - c1.X),
		height:   math.Abs(c2.Y - c1.Y),
		rotation: v.Rotation,
	}, true
}

// singleStroke returns the only member when it is a line or arrow.
func (e *Engine) singleStroke() (*shape.Stroke, bool) {
	if len(e.members) != 1 {
		return nil, false
	}
	s, ok := e.members[0].(*shape.Stroke)
	return s, ok
}

// DetectHandle returns the handle under the world point. Specific handles are
// tested before the move region.
func (e *Engine) DetectHandle(world geom.Point) (Handle, bool) {
	sb, ok := e.screenBox()
	if !ok {
		return HandleNone, false
	}
	local := sb.local(e.proj.WorldToScreen(world))
	radius := HandleSize / 2

	if line, ok := e.singleStroke(); ok {
		ends := []struct {
			h Handle
			p geom.Point
		}{{HandleLineStart, line.Start}, {HandleLineEnd, line.End}}
		for _, end := range ends {
			if local.Dist(sb.local(e.proj.WorldToScreen(end.p))) <= radius*1.5 {
				return end.h, true
			}
		}
	} else {
		for _, h := range boxHandles {
			if h.zone != nil {
				if sb.inZone(local, *h.zone) {
					return h.handle, true
				}
				continue
			}
			at := geom.Point{X: h.at.X * sb.width, Y: h.at.Y * sb.height}
			if local.Dist(at) <= radius {
				return h.handle, true
			}
		}
	}

	if sb.inside(local) {
		return HandleMove, true
	}
	return HandleNone, false
}

// Handles returns the screen positions of the handles to draw.
func (e *Engine) Handles() []HandlePos {
	sb, ok := e.screenBox()
	if !ok {
		return nil
	}
	if line, ok := e.singleStroke(); ok {
		return []HandlePos{
			{Handle: HandleLineStart, Screen: e.proj.WorldToScreen(line.Start)},
			{Handle: HandleLineEnd, Screen: e.proj.WorldToScreen(line.End)},
		}
	}
	out := make([]HandlePos, 0, len(boxHandles))
	for _, h := range boxHandles {
		out = append(out, HandlePos{Handle: h.handle, Screen: sb.toScreen(h.at)})
	}
	return out
}

// PointerDown starts a gesture on the handle under world. It does nothing when
// there is no box, no handle, or a member is locked by another peer.
func (e *Engine) PointerDown(world geom.Point, locked map[string]bool) bool {
	if e.raw == nil || e.Active() {
		return false
	}
	for _, s := range e.members {
		if locked[s.ID()] {
			e.logger.Debug("transform: selection locked by a peer", "shape", s.ID())
			return false
		}
	}
	h, ok := e.DetectHandle(world)
	if !ok {
		return false
	}

	e.handle = h
	e.startPointer = world
	e.startBox = *e.raw
	e.baseline = make([]shape.Shape, len(e.members))
	for i, s := range e.members {
		e.baseline[i] = s.Clone()
	}

	switch {
	case h == HandleMove:
		e.state = Dragging
	case h == HandleRotate:
		e.state = Rotating
	default:
		e.state = Resizing
	}
	return true
}

// PointerMove advances the gesture, or tracks the hovered handle when idle.
func (e *Engine) PointerMove(world geom.Point) {
	if !e.Active() {
		e.hover, _ = e.DetectHandle(world)
		return
	}

	from := e.startBox
	to := from
	dx := world.X - e.startPointer.X
	dy := world.Y - e.startPointer.Y

	switch e.state {
	case Dragging:
		to.X1, to.Y1, to.X2, to.Y2 = from.X1+dx, from.Y1+dy, from.X2+dx, from.Y2+dy
	case Resizing:
		if e.handle.lineEnd() {
			e.moveLineEnd(world)
			return
		}
		to = resize(from, e.handle, geom.Rotate(-from.Rotation).ApplyVector(geom.Point{X: dx, Y: dy}))
	case Rotating:
		c := from.Box().Center()
		a1 := math.Atan2(e.startPointer.Y-c.Y, e.startPointer.X-c.X)
		a2 := math.Atan2(world.Y-c.Y, world.X-c.X)
		to.Rotation = from.Rotation + (a2 - a1)
	}

	e.raw = &to
	if e.state == Rotating {
		e.rotate(from, to)
	} else {
		e.scale(from, to)
	}
}

// resize moves the two edges next to a corner by the local delta, keeping
// each axis at least MinSize.
func resize(b shape.RawBox, h Handle, d geom.Point) shape.RawBox {
	switch h {
	case HandleTL:
		b.X1 += d.X
		b.Y1 += d.Y
	case HandleTR:
		b.X2 += d.X
		b.Y1 += d.Y
	case HandleBR:
		b.X2 += d.X
		b.Y2 += d.Y
	case HandleBL:
		b.X1 += d.X
		b.Y2 += d.Y
	}
	if b.X2-b.X1 < MinSize {
		if h.left() {
			b.X1 = b.X2 - MinSize
		} else {
			b.X2 = b.X1 + MinSize
		}
	}
	if b.Y2-b.Y1 < MinSize {
		if h.top() {
			b.Y1 = b.Y2 - MinSize
		} else {
			b.Y2 = b.Y1 + MinSize
		}
	}
	return b
}

func (e *Engine) moveLineEnd(world geom.Point) {
	line, ok := e.baseline[0].Clone().(*shape.Stroke)
	if !ok {
		return
	}
	if e.handle == HandleLineStart {
		line.Start = world
	} else {
		line.End = world
	}
	box := shape.BoundsOf(line)
	e.raw = &box
	e.publish([]shape.Shape{line})
}

// scale maps every baseline member from the start box onto the current one.
func (e *Engine) scale(from, to shape.RawBox) {
	m := geom.BoxMapping(from.Box(), to.Box())
	delta := to.Rotation - from.Rotation
	out := make([]shape.Shape, len(e.baseline))
	for i, base := range e.baseline {
		s := base.Clone()
		s.Transform(m)
		if s.Rotatable() {
			s.SetRotation(base.Rotation() + delta)
		}
		out[i] = s
	}
	e.publish(out)
}

// rotate orbits every baseline member about the start box centre. Rotatable
// members also turn in place by the same angle.
func (e *Engine) rotate(from, to shape.RawBox) {
	delta := to.Rotation - from.Rotation
	pivot := from.Box().Center()
	out := make([]shape.Shape, len(e.baseline))
	for i, base := range e.baseline {
		s := base.Clone()
		s.Orbit(delta, pivot)
		if s.Rotatable() {
			s.SetRotation(base.Rotation() + delta)
		}
		out[i] = s
	}
	e.publish(out)
}

func (e *Engine) publish(shapes []shape.Shape) {
	e.members = shapes
	for _, s := range shapes {
		e.sink.Update(s.Clone())
	}
}

// PointerUp ends the gesture and keeps the box. It reports whether a gesture
// was in progress.
func (e *Engine) PointerUp() bool {
	active := e.Active()
	e.reset()
	return active
}

// Escape abandons the gesture and clears the box. An interrupted rotation
// resets the rotation of every member to zero instead of restoring it.
func (e *Engine) Escape() {
	if e.state == Rotating {
		for _, s := range e.members {
			if !s.Rotatable() {
				continue
			}
			c := s.Clone()
			c.SetRotation(0)
			e.sink.Update(c)
		}
	}
	e.Clear()
}

func (e *Engine) reset() {
	e.state = Idle
	e.handle = HandleNone
	e.hover = HandleNone
	e.baseline = nil
}
