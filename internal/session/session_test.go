package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkdrift/inkdrift/internal/awareness"
	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	return New(Options{Name: "ada", Width: 800, Height: 600})
}

func scr(s *Session, x, y float64) geom.Point {
	return s.Camera().WorldToScreen(geom.Point{X: x, Y: y})
}

func assertBounds(t *testing.T, want geom.Box, sh shape.Shape) {
	t.Helper()
	got := sh.Bounds()
	assert.InDelta(t, want.X1, got.X1, 1e-9)
	assert.InDelta(t, want.Y1, got.Y1, 1e-9)
	assert.InDelta(t, want.X2, got.X2, 1e-9)
	assert.InDelta(t, want.Y2, got.Y2, 1e-9)
}

func click(s *Session, x, y float64, shift bool) {
	s.PointerDown(scr(s, x, y), ButtonPrimary, shift)
	s.PointerUp(scr(s, x, y))
}

func drag(s *Session, from, to geom.Point) {
	s.PointerDown(scr(s, from.X, from.Y), ButtonPrimary, false)
	s.PointerMove(scr(s, (from.X+to.X)/2, (from.Y+to.Y)/2))
	s.PointerMove(scr(s, to.X, to.Y))
	s.PointerUp(scr(s, to.X, to.Y))
}

func createRect(t *testing.T, s *Session, x, y float64) string {
	t.Helper()
	s.SetTool(ToolRect)
	click(s, x, y, false)
	shapes := s.Shapes()
	require.NotEmpty(t, shapes)
	return shapes[len(shapes)-1].ID()
}

func lockedBy(t *testing.T, s *Session) []string {
	t.Helper()
	var ids []string
	s.Awareness().LocalState().Decode(awareness.FieldLockedShapes, &ids)
	return ids
}

func TestCreateRectSelectsIt(t *testing.T) {
	s := newSession(t)
	id := createRect(t, s, 0, 0)

	assert.Equal(t, ToolSelect, s.Tool())
	assert.Equal(t, []string{id}, s.Selection().IDs())
	assertBounds(t, geom.Box{X1: -15, Y1: -15, X2: 15, Y2: 15}, s.Shapes()[0])

	v, ok := s.Visual()
	require.True(t, ok)
	assert.Equal(t, []string{id}, v.ShapeIDs)
	assert.Equal(t, []string{id}, lockedBy(t, s))

	var name string
	require.True(t, s.Awareness().LocalState().Decode(awareness.FieldName, &name))
	assert.Equal(t, "ada", name)
}

func TestDragMovesAndUndoes(t *testing.T) {
	s := newSession(t)
	createRect(t, s, 0, 0)

	drag(s, geom.Point{}, geom.Point{X: 10, Y: 5})
	require.Len(t, s.Shapes(), 1)
	assertBounds(t, geom.Box{X1: -5, Y1: -10, X2: 25, Y2: 20}, s.Shapes()[0])

	require.True(t, s.Undo())
	assertBounds(t, geom.Box{X1: -15, Y1: -15, X2: 15, Y2: 15}, s.Shapes()[0])

	require.True(t, s.Undo())
	assert.Empty(t, s.Shapes())
	assert.Zero(t, s.Selection().Len(), "removed shapes leave the selection")

	assert.True(t, s.Key(KeyEvent{Code: "KeyY", Ctrl: true}))
	assert.Len(t, s.Shapes(), 1)
}

func TestAreaSelectSkipsLocked(t *testing.T) {
	s := newSession(t)
	a := createRect(t, s, 0, 0)
	b := createRect(t, s, 100, 0)
	createRect(t, s, 500, 500)

	peer := awareness.New("peer")
	require.NoError(t, peer.SetLocalField(awareness.FieldLockedShapes, []string{b}))
	require.NoError(t, s.Awareness().ApplyUpdate(peer.EncodeUpdate(), "remote"))

	click(s, -300, -300, false)
	assert.Zero(t, s.Selection().Len(), "clicking empty space clears the selection")

	s.PointerDown(scr(s, -50, -50), ButtonPrimary, false)
	s.PointerMove(scr(s, 150, 50))
	var box awareness.SelectionBox
	require.True(t, s.Awareness().LocalState().Decode(awareness.FieldSelectionBox, &box))
	assert.Equal(t, geom.Point{X: 150, Y: 50}, box.Current)
	s.PointerUp(scr(s, 150, 50))

	assert.Equal(t, []string{a}, s.Selection().IDs())
	assert.False(t, s.Awareness().LocalState().Decode(awareness.FieldSelectionBox, &box))
}

func TestClickLockedShapeIgnored(t *testing.T) {
	s := newSession(t)
	id := createRect(t, s, 0, 0)
	s.Selection().Clear()

	peer := awareness.New("peer")
	require.NoError(t, peer.SetLocalField(awareness.FieldLockedShapes, []string{id}))
	require.NoError(t, s.Awareness().ApplyUpdate(peer.EncodeUpdate(), "remote"))

	click(s, 0, 0, false)
	assert.Zero(t, s.Selection().Len())
}

func TestShiftClickAddsAndRemoves(t *testing.T) {
	s := newSession(t)
	a := createRect(t, s, 0, 0)
	b := createRect(t, s, 100, 0)

	click(s, 0, 0, true)
	assert.ElementsMatch(t, []string{a, b}, s.Selection().IDs())
	v, ok := s.Visual()
	require.True(t, ok)
	assert.InDelta(t, -15-8, v.X1, 1e-9, "group boxes are padded")

	click(s, 100, 0, true)
	assert.Equal(t, []string{a}, s.Selection().IDs())
}

func TestPencilStroke(t *testing.T) {
	s := newSession(t)
	s.SetTool(ToolPencil)

	s.PointerDown(scr(s, 0, 0), ButtonPrimary, false)
	for i := 1; i <= 4; i++ {
		s.PointerMove(scr(s, float64(i*10), float64(i%2*5)))
	}
	var d awareness.DraftState
	require.True(t, s.Awareness().LocalState().Decode(awareness.FieldDraft, &d))
	assert.Equal(t, s.Awareness().ClientID(), d.AuthorID)
	assert.Len(t, s.Drafts(), 1)

	s.PointerUp(scr(s, 40, 0))
	require.Len(t, s.Shapes(), 1)
	assert.Equal(t, shape.KindPencil, s.Shapes()[0].Kind())
	assert.Equal(t, ToolPencil, s.Tool(), "pencil stays armed")
	assert.Empty(t, s.Drafts())
	assert.False(t, s.Awareness().LocalState().Decode(awareness.FieldDraft, &d))
}

func TestArrowSwitchesBackToSelect(t *testing.T) {
	s := newSession(t)
	s.SetTool(ToolArrow)
	drag(s, geom.Point{X: 0, Y: 0}, geom.Point{X: 60, Y: 20})

	require.Len(t, s.Shapes(), 1)
	line, ok := s.Shapes()[0].(*shape.Stroke)
	require.True(t, ok)
	assert.Equal(t, shape.KindArrow, line.Kind())
	assert.Equal(t, geom.Point{X: 60, Y: 20}, line.End)
	assert.Equal(t, ToolSelect, s.Tool())
}

func TestEraserRemovesTouched(t *testing.T) {
	s := newSession(t)
	createRect(t, s, 0, 0)
	keep := createRect(t, s, 200, 0)

	s.SetTool(ToolEraser)
	drag(s, geom.Point{X: -100, Y: 0}, geom.Point{X: 0, Y: 0})

	require.Len(t, s.Shapes(), 1)
	assert.Equal(t, keep, s.Shapes()[0].ID())
	assert.Equal(t, ToolEraser, s.Tool())
}

func TestDeleteKey(t *testing.T) {
	s := newSession(t)
	createRect(t, s, 0, 0)
	keep := createRect(t, s, 100, 0)
	click(s, 0, 0, false)

	assert.True(t, s.Key(KeyEvent{Key: "Delete"}))
	require.Len(t, s.Shapes(), 1)
	assert.Equal(t, keep, s.Shapes()[0].ID())
	assert.Zero(t, s.Selection().Len())
	assert.Empty(t, lockedBy(t, s))
}

func TestCopyPasteAtCursor(t *testing.T) {
	s := newSession(t)
	orig := createRect(t, s, 0, 0)
	assert.True(t, s.Key(KeyEvent{Code: "KeyC", Ctrl: true}))

	s.PointerMove(scr(s, 100, 50))
	assert.True(t, s.Key(KeyEvent{Code: "KeyV", Ctrl: true}))

	require.Len(t, s.Shapes(), 2)
	pasted := s.Shapes()[1]
	assert.NotEqual(t, orig, pasted.ID())
	assertBounds(t, geom.Box{X1: 85, Y1: 35, X2: 115, Y2: 65}, pasted)
	assert.Equal(t, []string{pasted.ID()}, s.Selection().IDs())

	s.Paste()
	assert.Len(t, s.Shapes(), 3, "the clipboard survives a paste")
}

func TestEscapeClearsEverything(t *testing.T) {
	s := newSession(t)
	createRect(t, s, 0, 0)
	s.SetTool(ToolPencil)
	s.PointerDown(scr(s, 0, 40), ButtonPrimary, false)
	s.PointerMove(scr(s, 30, 40))

	s.Key(KeyEvent{Key: "Escape"})
	s.PointerUp(scr(s, 30, 40))

	assert.Len(t, s.Shapes(), 1)
	assert.Empty(t, s.Drafts())
	assert.Zero(t, s.Selection().Len())
	_, ok := s.Visual()
	assert.False(t, ok)
}

func TestWheelAndPan(t *testing.T) {
	s := newSession(t)
	at := geom.Point{X: 600, Y: 100}
	world := s.Camera().ScreenToWorld(at)

	s.Wheel(-1, false, false, at)
	assert.Greater(t, s.Camera().State().Scale, 1.0)
	got := s.Camera().ScreenToWorld(at)
	assert.InDelta(t, world.X, got.X, 1e-9)
	assert.InDelta(t, world.Y, got.Y, 1e-9)

	before := s.Camera().State().Offset
	s.Wheel(1, true, false, at)
	assert.Greater(t, s.Camera().State().Offset.Y, before.Y)

	s.SetTool(ToolHand)
	before = s.Camera().State().Offset
	s.PointerDown(geom.Point{X: 100, Y: 100}, ButtonPrimary, false)
	s.PointerMove(geom.Point{X: 150, Y: 100})
	s.PointerUp(geom.Point{X: 150, Y: 100})
	assert.Less(t, s.Camera().State().Offset.X, before.X)
	assert.Empty(t, s.Shapes())
}

func TestToolShortcuts(t *testing.T) {
	s := newSession(t)
	assert.True(t, s.Key(KeyEvent{Key: "p"}))
	assert.Equal(t, ToolPencil, s.Tool())
	assert.False(t, s.Key(KeyEvent{Key: "q"}))
	assert.True(t, ToolEraser.Valid())
	assert.False(t, ToolName("lasso").Valid())
}

func TestRemoteRemovalDropsSelection(t *testing.T) {
	s := newSession(t)
	id := createRect(t, s, 0, 0)
	require.Equal(t, 1, s.Selection().Len())

	s.Replica().Remove(id)
	assert.Zero(t, s.Selection().Len())
	_, ok := s.Visual()
	assert.False(t, ok)
}

func TestCloseWithdrawsPresence(t *testing.T) {
	s := newSession(t)
	peer := awareness.New("peer")
	s.PointerMove(scr(s, 5, 5))
	require.NoError(t, peer.ApplyUpdate(s.Awareness().EncodeUpdate(), "remote"))
	require.Len(t, peer.RemoteCursors(), 1)

	s.Close()
	require.NoError(t, peer.ApplyUpdate(s.Awareness().EncodeUpdate(), "remote"))
	assert.Empty(t, peer.RemoteCursors())
	assert.Len(t, peer.States(), 1)
}
