package crdt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tracked = []string{"createShape", "updateShape", "removeShape"}

func TestUndoRedoInsert(t *testing.T) {
	d := NewDoc("a")
	arr := d.Array("s")
	um := NewUndoManager(arr, tracked, 0)

	d.Transact("createShape", func(tx *Txn) { arr.Push(tx, val("x")) })
	d.Transact("createShape", func(tx *Txn) { arr.Push(tx, val("y")) })
	require.True(t, um.CanUndo())

	assert.True(t, um.Undo())
	assert.Equal(t, []string{"x"}, values(arr))
	assert.True(t, um.CanRedo())

	assert.True(t, um.Redo())
	assert.Equal(t, []string{"x", "y"}, values(arr))

	assert.True(t, um.Undo())
	assert.True(t, um.Undo())
	assert.Empty(t, values(arr))
	assert.False(t, um.Undo())
}

func TestUndoUpdateAndRemoveChain(t *testing.T) {
	d := NewDoc("a")
	arr := d.Array("s")
	um := NewUndoManager(arr, tracked, 0)

	d.Transact("createShape", func(tx *Txn) { arr.Push(tx, val("v1")) })
	d.Transact("updateShape", func(tx *Txn) { arr.Replace(tx, 0, val("v2")) })
	d.Transact("removeShape", func(tx *Txn) { arr.Delete(tx, 0, 1) })
	assert.Empty(t, values(arr))

	require.True(t, um.Undo())
	assert.Equal(t, []string{"v2"}, values(arr))
	require.True(t, um.Undo())
	assert.Equal(t, []string{"v1"}, values(arr))
	require.True(t, um.Undo())
	assert.Empty(t, values(arr))

	require.True(t, um.Redo())
	assert.Equal(t, []string{"v1"}, values(arr))
	require.True(t, um.Redo())
	assert.Equal(t, []string{"v2"}, values(arr))
	require.True(t, um.Redo())
	assert.Empty(t, values(arr))
}

func TestUndoIgnoresUntrackedAndRemote(t *testing.T) {
	a := NewDoc("a")
	b := NewDoc("b")
	arr := a.Array("s")
	um := NewUndoManager(arr, tracked, 0)

	a.Transact("persistence", func(tx *Txn) { arr.Push(tx, val("loaded")) })
	assert.False(t, um.CanUndo())

	b.Transact("createShape", func(tx *Txn) { b.Array("s").Push(tx, val("remote")) })
	require.NoError(t, a.ApplyUpdate(b.EncodeStateAsUpdate(nil), "remote"))
	assert.False(t, um.CanUndo())
	assert.Len(t, values(arr), 2)
}

func TestUndoNeverResurrectsRemoteDelete(t *testing.T) {
	a := NewDoc("a")
	b := NewDoc("b")
	arr := a.Array("s")
	um := NewUndoManager(arr, tracked, 0)

	a.Transact("createShape", func(tx *Txn) { arr.Push(tx, val("v1")) })
	a.Transact("updateShape", func(tx *Txn) { arr.Replace(tx, 0, val("v2")) })
	syncDocs(t, a, b)

	b.Transact("removeShape", func(tx *Txn) { b.Array("s").Delete(tx, 0, 1) })
	syncDocs(t, a, b)
	assert.Empty(t, values(arr))

	// Both steps target the removed shape.
	assert.False(t, um.Undo())
	assert.Empty(t, values(arr))
}

func TestCaptureTimeoutMerges(t *testing.T) {
	d := NewDoc("a")
	arr := d.Array("s")
	um := NewUndoManager(arr, tracked, time.Second)
	now := time.Unix(1000, 0)
	um.now = func() time.Time { return now }

	d.Transact("createShape", func(tx *Txn) { arr.Push(tx, val("x")) })
	now = now.Add(100 * time.Millisecond)
	d.Transact("updateShape", func(tx *Txn) { arr.Replace(tx, 0, val("x2")) })

	um.StopCapturing()
	d.Transact("updateShape", func(tx *Txn) { arr.Replace(tx, 0, val("x3")) })

	require.True(t, um.Undo())
	assert.Equal(t, []string{"x2"}, values(arr))
	require.True(t, um.Undo())
	assert.Empty(t, values(arr))
}

func TestNewChangeClearsRedo(t *testing.T) {
	d := NewDoc("a")
	arr := d.Array("s")
	um := NewUndoManager(arr, tracked, 0)

	d.Transact("createShape", func(tx *Txn) { arr.Push(tx, val("x")) })
	um.Undo()
	require.True(t, um.CanRedo())

	d.Transact("createShape", func(tx *Txn) { arr.Push(tx, val("y")) })
	assert.False(t, um.CanRedo())

	um.Clear()
	assert.False(t, um.CanUndo())
}

func TestUndoEmitsUpdates(t *testing.T) {
	a := NewDoc("a")
	b := NewDoc("b")
	arr := a.Array("s")
	um := NewUndoManager(arr, tracked, 0)
	a.OnUpdate(func(u []byte, origin string) {
		require.NoError(t, b.ApplyUpdate(u, "remote"))
	})

	a.Transact("createShape", func(tx *Txn) { arr.Push(tx, val("x")) })
	assert.Equal(t, []string{"x"}, values(b.Array("s")))
	um.Undo()
	assert.Empty(t, values(b.Array("s")))
}
