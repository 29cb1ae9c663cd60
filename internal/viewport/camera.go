// Package viewport maps between world and screen coordinates for an
// orthographic, pannable and zoomable view of the board.
package viewport

import (
	"sync"

	"github.com/inkdrift/inkdrift/internal/geom"
)

const (
	MinScale = 0.1
	MaxScale = 5.0

	ZoomInFactor  = 1.1
	ZoomOutFactor = 0.9

	// PanStep is the screen distance of one keyboard or wheel pan.
	PanStep = 100.0
)

type Direction int

const (
	Left Direction = iota
	Right
	Up
	Down
)

// State is the persisted part of a camera.
type State struct {
	Scale  float64    `json:"scale"`
	Offset geom.Point `json:"offset"`
}

// Camera shows the world point Offset at the centre of a Width x Height
// viewport, Scale pixels per world unit. Screen and world are both Y-down.
type Camera struct {
	mu     sync.RWMutex
	scale  float64
	offset geom.Point
	width  float64
	height float64
}

func NewCamera(width, height float64) *Camera {
	return &Camera{scale: 1, width: width, height: height}
}

func (c *Camera) Resize(width, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = width, height
}

func (c *Camera) Size() (width, height float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

func (c *Camera) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{Scale: c.scale, Offset: c.offset}
}

// SetState restores a saved state. The scale is clamped.
func (c *Camera) SetState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scale = clampScale(s.Scale)
	c.offset = s.Offset
}

// Matrix maps world to screen coordinates.
func (c *Camera) Matrix() geom.Matrix2D {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.matrixLocked()
}

func (c *Camera) matrixLocked() geom.Matrix2D {
	return geom.Compose(
		geom.Translate(c.width/2, c.height/2),
		geom.Scale(c.scale, c.scale),
		geom.Translate(-c.offset.X, -c.offset.Y),
	)
}

func (c *Camera) WorldToScreen(p geom.Point) geom.Point {
	return c.Matrix().Apply(p)
}

func (c *Camera) ScreenToWorld(p geom.Point) geom.Point {
	return c.Matrix().Invert().Apply(p)
}

// ZoomAt scales the view by factor and keeps the world point under screen
// fixed.
func (c *Camera) ZoomAt(factor float64, screen geom.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.matrixLocked().Invert().Apply(screen)
	c.scale = clampScale(c.scale * factor)
	after := c.matrixLocked().Invert().Apply(screen)
	c.offset = c.offset.Add(before.X-after.X, before.Y-after.Y)
}

// ZoomIn and ZoomOut zoom about the viewport centre.
func (c *Camera) ZoomIn() { c.ZoomAt(ZoomInFactor, c.center()) }

func (c *Camera) ZoomOut() { c.ZoomAt(ZoomOutFactor, c.center()) }

func (c *Camera) center() geom.Point {
	w, h := c.Size()
	return geom.Point{X: w / 2, Y: h / 2}
}

// WheelFactor is the zoom factor of one wheel notch.
func WheelFactor(deltaY float64) float64 {
	if deltaY < 0 {
		return ZoomInFactor
	}
	return ZoomOutFactor
}

// Pan moves the view by a screen delta, dragging the content with the pointer.
func (c *Camera) Pan(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = c.offset.Add(-dx/c.scale, -dy/c.scale)
}

// PanStep scrolls the view by PanStep pixels.
func (c *Camera) PanStep(d Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	step := PanStep / c.scale
	switch d {
	case Left:
		c.offset.X -= step
	case Right:
		c.offset.X += step
	case Up:
		c.offset.Y -= step
	case Down:
		c.offset.Y += step
	}
}

// Reset returns to scale 1 centred on the origin.
func (c *Camera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scale = 1
	c.offset = geom.Point{}
}

func clampScale(s float64) float64 {
	return max(MinScale, min(MaxScale, s))
}
