package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/inkdrift/inkdrift/internal/store/storetest"
)

// Set INKDRIFT_TEST_DATABASE_URL to run against a real server.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("INKDRIFT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("INKDRIFT_TEST_DATABASE_URL not set")
	}
	db, err := Open(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresKV(t *testing.T) {
	db := openTestDB(t)
	ns := "test_" + uuid.NewString()
	kv, other := db.KV(ns), db.KV(ns+"_other")
	t.Cleanup(func() {
		_ = kv.Clear(context.Background())
		_ = other.Clear(context.Background())
	})

	storetest.RunKV(t, kv, other)
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz")
	require.Error(t, err)
}
