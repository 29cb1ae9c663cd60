package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	kv := m.KV("room_a")

	require.NoError(t, kv.Put(ctx, "b", []byte("2")))
	require.NoError(t, kv.Put(ctx, "a", []byte("1")))

	recs, err := kv.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Key)
	assert.Equal(t, []byte("2"), recs[1].Value)

	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, kv.Delete(ctx, "a"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	other, err := m.KV("room_b").GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, other, "namespaces are isolated")

	require.NoError(t, kv.Clear(ctx))
	recs, err = kv.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
