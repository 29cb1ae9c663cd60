// Package session wires a board together for one local user: the replicated
// shapes, presence, selection, spatial index, transform engine, drawing tools,
// clipboard and camera, driven by pointer, wheel and keyboard input.
//
// A Session is not safe for concurrent use. Remote updates must be applied on
// the goroutine that feeds input; provider.Options.Dispatch exists for that.
package session

import (
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/inkdrift/inkdrift/internal/awareness"
	"github.com/inkdrift/inkdrift/internal/crdt"
	"github.com/inkdrift/inkdrift/internal/draft"
	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/replica"
	"github.com/inkdrift/inkdrift/internal/selection"
	"github.com/inkdrift/inkdrift/internal/shape"
	"github.com/inkdrift/inkdrift/internal/spatial"
	"github.com/inkdrift/inkdrift/internal/transform"
	"github.com/inkdrift/inkdrift/internal/viewport"
)

// DefaultUndoCaptureTimeout merges edits closer together than this into one
// undo step.
const DefaultUndoCaptureTimeout = 500 * time.Millisecond

type Options struct {
	// Doc is the replicated document. A fresh one is created when nil.
	Doc *crdt.Doc
	// Awareness defaults to a new instance keyed by the doc's client ID.
	Awareness *awareness.Awareness
	// Picker resolves points the spatial index misses. Optional.
	Picker spatial.Picker

	Name   string
	Width  float64
	Height float64

	ThrottleInterval   time.Duration
	UndoCaptureTimeout time.Duration
	Logger             *slog.Logger
}

type Session struct {
	logger *slog.Logger

	replica   *replica.Replica
	throttle  *replica.Throttle
	aware     *awareness.Awareness
	selection *selection.Selection
	finder    *spatial.Finder
	engine    *transform.Engine
	camera    *viewport.Camera

	line   *draft.LineTool
	pencil *draft.PencilTool
	eraser *draft.EraserTool

	tool      ToolName
	clipboard []shape.Shape
	cursor    geom.Point
	panning   bool
	panFrom   geom.Point
}

func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	doc := opts.Doc
	if doc == nil {
		doc = crdt.NewDoc("")
	}
	capture := opts.UndoCaptureTimeout
	if capture <= 0 {
		capture = DefaultUndoCaptureTimeout
	}
	aware := opts.Awareness
	if aware == nil {
		aware = awareness.New(doc.ClientID())
	}

	s := &Session{
		logger:    logger,
		aware:     aware,
		selection: selection.New(),
		finder:    spatial.NewFinder(opts.Picker),
		camera:    viewport.NewCamera(opts.Width, opts.Height),
		tool:      ToolSelect,
	}
	s.replica = replica.New(doc, replica.Options{UndoCaptureTimeout: capture, Logger: logger})
	s.throttle = replica.NewThrottle(s.replica, opts.ThrottleInterval)
	s.engine = transform.NewEngine(s.camera, s.throttle, logger)

	author := aware.ClientID()
	s.line = draft.NewLineTool(author, s.replica, s.publishDraft, logger)
	s.pencil = draft.NewPencilTool(author, s.replica, s.publishDraft, logger)
	s.eraser = draft.NewEraserTool(author, s.finder, s.replica, s.publishDraft, logger)

	s.replica.OnChange(s.shapesChanged)
	s.selection.OnChange(s.selectionChanged)
	s.finder.Rebuild(s.replica.Shapes().All())

	s.setField(awareness.FieldName, opts.Name)
	s.setField(awareness.FieldColor, awareness.PastelColor(awareness.ClientNumber(author)))
	return s
}

func (s *Session) Replica() *replica.Replica           { return s.replica }
func (s *Session) Awareness() *awareness.Awareness     { return s.aware }
func (s *Session) Selection() *selection.Selection     { return s.selection }
func (s *Session) Camera() *viewport.Camera            { return s.camera }
func (s *Session) Engine() *transform.Engine           { return s.engine }
func (s *Session) Finder() *spatial.Finder             { return s.finder }
func (s *Session) Eraser() *draft.EraserTool           { return s.eraser }
func (s *Session) Shapes() []shape.Shape               { return s.replica.Shapes().All() }
func (s *Session) Tool() ToolName                      { return s.tool }
func (s *Session) Cursor() geom.Point                  { return s.cursor }
func (s *Session) LockedShapeIDs() map[string]bool     { return s.aware.LockedShapeIDs() }
func (s *Session) tools() []draft.Tool                 { return []draft.Tool{s.line, s.pencil, s.eraser} }
func (s *Session) selected() []shape.Shape             { return s.replica.Shapes().Lookup(s.selection.IDs()) }
func (s *Session) CanUndo() bool                       { return s.replica.CanUndo() }
func (s *Session) CanRedo() bool                       { return s.replica.CanRedo() }
func (s *Session) Visual() (transform.VisualBox, bool) { return s.engine.Visual() }

// Drafts returns the local draft, if any, followed by the drafts of peers.
func (s *Session) Drafts() []shape.Shape {
	var out []shape.Shape
	for _, t := range s.tools() {
		if d, ok := t.Draft(); ok {
			out = append(out, d.Shape)
		}
	}
	remote := s.aware.RemoteDrafts()
	for _, id := range slices.Sorted(maps.Keys(remote)) {
		out = append(out, remote[id])
	}
	return out
}

// SetTool switches tools. Drafts of the previous tool are discarded.
func (s *Session) SetTool(t ToolName) {
	if t == s.tool {
		return
	}
	s.clearDrafts()
	s.tool = t
}

func (s *Session) shapesChanged(replica.Change) {
	s.finder.Rebuild(s.replica.Shapes().All())
	reg := s.replica.Shapes()
	s.selection.Retain(func(id string) bool { return reg.IndexOf(id) >= 0 })
	s.refreshBox()
}

func (s *Session) selectionChanged() {
	s.refreshBox()

	if d, ok := s.selection.Drag(); ok {
		s.setField(awareness.FieldSelectionBox, awareness.SelectionBox{Start: d.Start, Current: d.Current})
	} else {
		s.setField(awareness.FieldSelectionBox, nil)
	}
	if ids := s.selection.IDs(); len(ids) > 0 {
		s.setField(awareness.FieldLockedShapes, ids)
	} else {
		s.setField(awareness.FieldLockedShapes, nil)
	}
}

// refreshBox recomputes the transform box from the registry and publishes it.
func (s *Session) refreshBox() {
	s.engine.Refresh(s.selected())
	s.publishBox()
}

func (s *Session) publishBox() {
	if v, ok := s.engine.Visual(); ok {
		s.setField(awareness.FieldBox, v.RawBox)
		return
	}
	s.setField(awareness.FieldBox, nil)
}

func (s *Session) publishDraft(d *draft.Draft) {
	if d == nil {
		s.setField(awareness.FieldDraft, nil)
		return
	}
	raw, err := shape.Marshal(d.Shape)
	if err != nil {
		s.logger.Error("session: marshal draft", "error", err)
		return
	}
	s.setField(awareness.FieldDraft, awareness.DraftState{AuthorID: d.AuthorID, Shape: raw})
}

func (s *Session) setField(key string, v any) {
	if err := s.aware.SetLocalField(key, v); err != nil {
		s.logger.Error("session: publish presence", "field", key, "error", err)
	}
}

func (s *Session) clearDrafts() {
	for _, t := range s.tools() {
		if t.Active() {
			t.Clear()
		}
	}
}

// Undo reverts the latest local change. Active drafts are discarded first.
func (s *Session) Undo() bool {
	s.clearDrafts()
	s.throttle.Flush()
	ok := s.replica.Undo()
	s.refreshBox()
	return ok
}

func (s *Session) Redo() bool {
	s.throttle.Flush()
	ok := s.replica.Redo()
	s.refreshBox()
	return ok
}

// DeleteSelected removes every selected shape in one step.
func (s *Session) DeleteSelected() {
	ids := s.selection.IDs()
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		s.throttle.Discard(id)
	}
	s.replica.RemoveByIDs(ids)
	s.selection.Clear()
}

// ResetRoom removes every shape of the board.
func (s *Session) ResetRoom() {
	s.throttle.Flush()
	s.selection.Reset()
	s.replica.ResetRoom()
}

// Frame flushes throttled shape updates. Call it once per rendered frame.
func (s *Session) Frame() {
	s.throttle.Flush()
}

// Close flushes pending updates and withdraws the local presence so peers do
// not keep a stale cursor.
func (s *Session) Close() {
	s.throttle.Flush()
	s.clearDrafts()
	s.aware.SetLocalState(nil)
}
