package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkdrift/inkdrift/internal/store"
)

func TestBoltKV(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	defer db.Close()

	kv := db.KV("room_a")
	recs, err := kv.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs, "missing bucket reads as empty")

	require.NoError(t, kv.Put(ctx, "update/2", []byte("y")))
	require.NoError(t, kv.Put(ctx, "update/1", []byte("x")))

	recs, err = kv.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "update/1", recs[0].Key)

	_, err = kv.Get(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	names, err := db.Namespaces()
	require.NoError(t, err)
	assert.Equal(t, []string{"room_a"}, names)

	require.NoError(t, kv.Clear(ctx))
	recs, err = kv.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
