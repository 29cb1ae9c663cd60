package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
)

func TestSelectToggleDeselect(t *testing.T) {
	s := New()
	changes := 0
	s.OnChange(func() { changes++ })

	s.Select("a", false)
	s.Select("b", true)
	assert.Equal(t, []string{"a", "b"}, s.IDs())

	s.Select("a", false)
	assert.Equal(t, []string{"a", "b"}, s.IDs(), "selecting a member keeps the group")

	s.Select("c", false)
	assert.Equal(t, []string{"c"}, s.IDs())

	s.Click("d", true)
	s.Click("c", true)
	assert.Equal(t, []string{"d"}, s.IDs())
	assert.True(t, s.IsSelected("d"))

	s.Deselect("missing")
	s.Clear()
	s.Clear()
	assert.Zero(t, s.Len())
	assert.Equal(t, 6, changes)
}

func TestSetAndRetain(t *testing.T) {
	s := New()
	s.Set([]string{"a", "b", "c"})
	s.Retain(func(id string) bool { return id != "b" })
	assert.Equal(t, []string{"a", "c"}, s.IDs())
}

func TestDragSelectSkipsLocked(t *testing.T) {
	shapes := []shape.Shape{
		shape.NewBox("in", shape.KindRect, "red", geom.Box{X1: 10, Y1: 10, X2: 20, Y2: 20}, 0),
		shape.NewBox("locked", shape.KindRect, "red", geom.Box{X1: 30, Y1: 30, X2: 40, Y2: 40}, 0),
		shape.NewBox("out", shape.KindRect, "red", geom.Box{X1: 300, Y1: 300, X2: 400, Y2: 400}, 0),
	}
	s := New()
	s.BeginDrag(geom.Point{X: 50, Y: 50})
	s.UpdateDrag(geom.Point{X: 0, Y: 0})

	d, ok := s.Drag()
	require.True(t, ok)
	assert.Equal(t, geom.Box{X1: 0, Y1: 0, X2: 50, Y2: 50}, d.Box())

	s.EndDrag(shapes, map[string]bool{"locked": true})
	assert.Equal(t, []string{"in"}, s.IDs())
	assert.False(t, s.Dragging())

	s.EndDrag(shapes, nil)
	assert.Equal(t, []string{"in"}, s.IDs(), "no drag, no change")
}

func TestReset(t *testing.T) {
	s := New()
	s.Select("a", false)
	s.BeginDrag(geom.Point{})
	s.Reset()
	assert.Empty(t, s.IDs())
	assert.False(t, s.Dragging())
}
