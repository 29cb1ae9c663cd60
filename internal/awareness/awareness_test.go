package awareness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
)

// relay copies every local change of from into to.
func relay(from, to *Awareness) {
	from.OnChange(func(c Change) {
		if !c.Local() {
			return
		}
		_ = to.ApplyUpdate(from.EncodeUpdate(c.Touched()...), "remote")
	})
}

func TestSetLocalFieldPropagates(t *testing.T) {
	a, b := New("a"), New("b")
	relay(a, b)

	var got []Change
	b.OnChange(func(c Change) { got = append(got, c) })

	require.NoError(t, a.SetLocalField(FieldCursor, geom.Point{X: 3, Y: 4}))
	require.NoError(t, a.SetLocalField(FieldName, "ada"))

	cursors := b.RemoteCursors()
	require.Contains(t, cursors, "a")
	assert.Equal(t, geom.Point{X: 3, Y: 4}, cursors["a"].Pos)
	assert.Equal(t, "ada", cursors["a"].Name)

	require.Len(t, got, 2)
	assert.Equal(t, []string{"a"}, got[0].Added)
	assert.Equal(t, []string{"a"}, got[1].Updated)
	assert.Contains(t, got[1].States, "a")
	assert.Contains(t, got[1].States, "b", "snapshot includes the local peer")
}

func TestUnchangedFieldIsNoOp(t *testing.T) {
	a := New("a")
	n := 0
	a.OnChange(func(Change) { n++ })

	require.NoError(t, a.SetLocalField(FieldColor, "red"))
	require.NoError(t, a.SetLocalField(FieldColor, "red"))
	assert.Equal(t, 1, n)
}

func TestStaleUpdateIgnored(t *testing.T) {
	a, b := New("a"), New("b")
	require.NoError(t, a.SetLocalField(FieldName, "first"))
	old := a.EncodeUpdate()
	require.NoError(t, a.SetLocalField(FieldName, "second"))

	require.NoError(t, b.ApplyUpdate(a.EncodeUpdate(), "remote"))
	require.NoError(t, b.ApplyUpdate(old, "remote"))

	var name string
	require.True(t, b.States()["a"].Decode(FieldName, &name))
	assert.Equal(t, "second", name)
}

func TestLocalEntriesInRemoteUpdatesIgnored(t *testing.T) {
	a, b := New("a"), New("b")
	require.NoError(t, b.ApplyUpdate(a.EncodeUpdate(), "remote"))
	require.NoError(t, b.SetLocalField(FieldName, "bob"))

	// a echoes b's state back with a bogus clock.
	require.NoError(t, a.ApplyUpdate(b.EncodeUpdate(), "remote"))
	require.NoError(t, b.ApplyUpdate([]byte(`{"clients":[{"id":"b","clock":99,"state":null}]}`), "remote"))

	assert.NotNil(t, b.LocalState())
}

func TestDisconnectRemovesPeer(t *testing.T) {
	a, b := New("a"), New("b")
	relay(a, b)
	require.NoError(t, a.SetLocalField(FieldCursor, geom.Point{X: 1, Y: 1}))
	require.Contains(t, b.RemoteCursors(), "a")

	var removed []string
	b.OnChange(func(c Change) { removed = append(removed, c.Removed...) })
	a.SetLocalState(nil)

	assert.Empty(t, b.RemoteCursors(), "no ghost cursor")
	assert.Equal(t, []string{"a"}, removed)
	assert.NotContains(t, b.States(), "a")

	require.NoError(t, a.SetLocalField(FieldName, "x"), "fields are ignored while offline")
	assert.Nil(t, a.LocalState())
}

func TestRemoveByRelay(t *testing.T) {
	a, b := New("a"), New("b")
	require.NoError(t, a.SetLocalField(FieldName, "ada"))
	require.NoError(t, b.ApplyUpdate(a.EncodeUpdate(), "remote"))

	b.Remove([]string{"a", "b", "unknown"}, "relay")
	assert.NotContains(t, b.States(), "a")
	assert.Contains(t, b.States(), "b")
}

func TestLockedShapesUnionOfOthers(t *testing.T) {
	local, p1, p2 := New("local"), New("p1"), New("p2")
	relay(p1, local)
	relay(p2, local)

	require.NoError(t, local.SetLocalField(FieldLockedShapes, []string{"mine"}))
	require.NoError(t, p1.SetLocalField(FieldLockedShapes, []string{"s1", "s2"}))
	require.NoError(t, p2.SetLocalField(FieldLockedShapes, []string{"s2", "s3"}))

	assert.Equal(t, map[string]bool{"s1": true, "s2": true, "s3": true}, local.LockedShapeIDs())

	require.NoError(t, p1.SetLocalField(FieldLockedShapes, nil))
	assert.Equal(t, map[string]bool{"s2": true, "s3": true}, local.LockedShapeIDs())
}

func TestRemoteBoxesAndDrafts(t *testing.T) {
	a, b := New("a"), New("b")
	relay(a, b)

	box := shape.RawBox{ShapeIDs: []string{"s1"}, X1: 0, Y1: 0, X2: 10, Y2: 10}
	require.NoError(t, a.SetLocalField(FieldBox, box))
	require.NoError(t, a.SetLocalField(FieldSelectionBox, SelectionBox{Current: geom.Point{X: 5, Y: 5}}))

	draft := shape.NewPath("draft-1", "red", []geom.Point{{X: 0, Y: 0}, {X: 5, Y: 5}}, 5)
	raw, err := shape.Marshal(draft)
	require.NoError(t, err)
	require.NoError(t, a.SetLocalField(FieldDraft, DraftState{AuthorID: "a", Shape: raw}))

	assert.Equal(t, box, b.RemoteBoxes()["a"])
	assert.Equal(t, geom.Point{X: 5, Y: 5}, b.RemoteSelectionBoxes()["a"].Current)
	require.Contains(t, b.RemoteDrafts(), "a")
	assert.Equal(t, shape.KindPencil, b.RemoteDrafts()["a"].Kind())

	require.NoError(t, a.SetLocalField(FieldSelectionBox, nil))
	require.NoError(t, a.SetLocalField(FieldDraft, nil))
	assert.Empty(t, b.RemoteSelectionBoxes())
	assert.Empty(t, b.RemoteDrafts())
}

func TestApplyGarbage(t *testing.T) {
	err := New("a").ApplyUpdate([]byte("nope"), "remote")
	assert.ErrorIs(t, err, ErrInvalidUpdate)
}

func TestPastelColor(t *testing.T) {
	assert.Equal(t, "hsl(47, 70%, 85%)", PastelColor(1))
	assert.Equal(t, "hsl(16, 70%, 85%)", PastelColor(8))
	assert.Equal(t, ClientNumber("peer"), ClientNumber("peer"))
}
