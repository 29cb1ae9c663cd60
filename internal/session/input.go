package session

import (
	"github.com/inkdrift/inkdrift/internal/awareness"
	"github.com/inkdrift/inkdrift/internal/draft"
	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
	"github.com/inkdrift/inkdrift/internal/viewport"
)

type ToolName string

const (
	ToolHand    ToolName = "hand"
	ToolSelect  ToolName = "select"
	ToolRect    ToolName = "rect"
	ToolEllipse ToolName = "ellipse"
	ToolLine    ToolName = "line"
	ToolArrow   ToolName = "arrow"
	ToolPencil  ToolName = "pencil"
	ToolEraser  ToolName = "eraser"
)

// Tools lists every tool in toolbar order.
var Tools = []ToolName{ToolHand, ToolSelect, ToolRect, ToolEllipse, ToolLine, ToolArrow, ToolPencil, ToolEraser}

var shortcuts = map[string]ToolName{
	"h": ToolHand,
	"v": ToolSelect,
	"r": ToolRect,
	"o": ToolEllipse,
	"l": ToolLine,
	"a": ToolArrow,
	"p": ToolPencil,
	"e": ToolEraser,
}

// Valid reports whether t names a known tool.
func (t ToolName) Valid() bool {
	for _, known := range Tools {
		if t == known {
			return true
		}
	}
	return false
}

// Button values match the DOM MouseEvent.button numbering.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// KeyEvent mirrors a browser keyboard event. Key is the produced character,
// Code the physical key ("KeyZ"), so shortcuts survive keyboard layouts.
type KeyEvent struct {
	Key   string
	Code  string
	Ctrl  bool
	Shift bool
}

func (s *Session) activeTool() draft.Tool {
	switch s.tool {
	case ToolLine, ToolArrow:
		return s.line
	case ToolPencil:
		return s.pencil
	case ToolEraser:
		return s.eraser
	}
	return nil
}

// PointerDown handles a press at a screen point.
func (s *Session) PointerDown(screen geom.Point, button Button, shift bool) {
	world := s.camera.ScreenToWorld(screen)
	s.cursor = world

	if button == ButtonMiddle || (button == ButtonPrimary && s.tool == ToolHand) {
		s.panning = true
		s.panFrom = screen
		return
	}
	if button != ButtonPrimary {
		return
	}

	switch s.tool {
	case ToolSelect:
		s.selectDown(world, shift)
	case ToolRect, ToolEllipse:
		s.createAt(world, shape.Kind(s.tool))
	case ToolLine, ToolArrow:
		s.line.SetKind(shape.Kind(s.tool))
		s.line.Start(world)
	case ToolPencil, ToolEraser:
		s.activeTool().Start(world)
	}
}

func (s *Session) selectDown(world geom.Point, shift bool) {
	locked := s.aware.LockedShapeIDs()

	if h, ok := s.engine.DetectHandle(world); ok && h.Grip() {
		s.engine.PointerDown(world, locked)
		return
	}

	if hit, ok := s.finder.FindAt(world.X, world.Y); ok && !locked[hit.ID()] {
		if shift || !s.selection.IsSelected(hit.ID()) {
			s.selection.Click(hit.ID(), shift)
		}
		if s.selection.IsSelected(hit.ID()) {
			s.engine.PointerDown(world, locked)
		}
		return
	}

	if s.engine.PointerDown(world, locked) {
		return
	}
	if !shift {
		s.selection.Clear()
	}
	s.selection.BeginDrag(world)
}

func (s *Session) createAt(world geom.Point, kind shape.Kind) {
	sh, err := shape.New(shape.Options{Kind: kind, Center: &world})
	if err != nil {
		s.logger.Error("session: create shape", "kind", kind, "error", err)
		return
	}
	if err := s.replica.Push(sh); err != nil {
		s.logger.Error("session: push shape", "id", sh.ID(), "error", err)
		return
	}
	s.replica.StopCapturing()
	s.SetTool(ToolSelect)
	s.selection.Set([]string{sh.ID()})
}

// PointerMove handles pointer motion at a screen point.
func (s *Session) PointerMove(screen geom.Point) {
	world := s.camera.ScreenToWorld(screen)
	s.cursor = world
	s.setField(awareness.FieldCursor, world)

	if s.panning {
		s.camera.Pan(screen.X-s.panFrom.X, screen.Y-s.panFrom.Y)
		s.panFrom = screen
		return
	}

	if t := s.activeTool(); t != nil {
		t.Update(world)
		return
	}
	if s.tool != ToolSelect {
		return
	}
	s.engine.PointerMove(world)
	if s.engine.Active() {
		s.publishBox()
	}
	s.selection.UpdateDrag(world)
}

// PointerUp finishes whatever gesture is in progress.
func (s *Session) PointerUp(screen geom.Point) {
	s.cursor = s.camera.ScreenToWorld(screen)
	if s.panning {
		s.panning = false
		return
	}

	if t := s.activeTool(); t != nil && t.Active() {
		_, stored := t.Commit()
		s.replica.StopCapturing()
		if stored && s.tool != ToolPencil {
			s.SetTool(ToolSelect)
		}
		return
	}

	if s.engine.PointerUp() {
		s.throttle.Flush()
		s.replica.StopCapturing()
		s.refreshBox()
	}
	s.selection.EndDrag(s.replica.Shapes().All(), s.aware.LockedShapeIDs())
}

// PointerLeave hides the cursor from peers.
func (s *Session) PointerLeave() {
	s.setField(awareness.FieldCursor, nil)
}

// Wheel zooms around the pointer. With ctrl it pans vertically, with shift
// horizontally, one step per event.
func (s *Session) Wheel(deltaY float64, ctrl, shift bool, screen geom.Point) {
	switch {
	case ctrl:
		if deltaY < 0 {
			s.camera.PanStep(viewport.Up)
		} else {
			s.camera.PanStep(viewport.Down)
		}
	case shift:
		if deltaY < 0 {
			s.camera.PanStep(viewport.Left)
		} else {
			s.camera.PanStep(viewport.Right)
		}
	default:
		s.camera.ZoomAt(viewport.WheelFactor(deltaY), screen)
	}
}

// Key handles a keyboard shortcut. It reports whether the key was consumed.
func (s *Session) Key(ev KeyEvent) bool {
	if ev.Ctrl {
		switch ev.Code {
		case "KeyC":
			s.Copy()
		case "KeyV":
			s.Paste()
		case "KeyZ":
			if ev.Shift {
				s.Redo()
			} else {
				s.Undo()
			}
		case "KeyY":
			s.Redo()
		default:
			return false
		}
		return true
	}

	switch ev.Key {
	case "Delete", "Backspace":
		s.DeleteSelected()
	case "+", "=":
		s.camera.ZoomIn()
	case "-":
		s.camera.ZoomOut()
	case "Escape":
		s.clearDrafts()
		s.engine.Escape()
		s.throttle.Flush()
		s.selection.Reset()
	case "ArrowLeft":
		s.camera.PanStep(viewport.Left)
	case "ArrowRight":
		s.camera.PanStep(viewport.Right)
	case "ArrowUp":
		s.camera.PanStep(viewport.Up)
	case "ArrowDown":
		s.camera.PanStep(viewport.Down)
	default:
		t, ok := shortcuts[ev.Key]
		if !ok {
			return false
		}
		s.SetTool(t)
	}
	return true
}
