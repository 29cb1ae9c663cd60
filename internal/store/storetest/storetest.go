// Package storetest checks that a store.KV backend behaves like the in-memory
// one.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkdrift/inkdrift/internal/store"
)

// RunKV exercises kv, which must start empty, and leaves it empty. other must
// be a different namespace of the same backend.
func RunKV(t *testing.T, kv, other store.KV) {
	t.Helper()
	ctx := context.Background()

	recs, err := kv.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, kv.Put(ctx, "update/b/00000000000000000001", []byte("y")))
	require.NoError(t, kv.Put(ctx, "update/a/00000000000000000002", []byte("x")))
	require.NoError(t, kv.Put(ctx, "update/a/00000000000000000002", []byte("x2")))

	recs, err = kv.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "update/a/00000000000000000002", recs[0].Key, "ordered by key")
	assert.Equal(t, []byte("x2"), recs[0].Value, "put overwrites")

	v, err := kv.Get(ctx, "update/b/00000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), v)
	_, err = kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	otherRecs, err := other.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, otherRecs, "namespaces are isolated")

	require.NoError(t, kv.Delete(ctx, "update/b/00000000000000000001"))
	require.NoError(t, kv.Delete(ctx, "update/b/00000000000000000001"), "deleting twice is fine")
	_, err = kv.Get(ctx, "update/b/00000000000000000001")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, kv.Clear(ctx))
	recs, err = kv.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
