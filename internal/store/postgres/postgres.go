// Package postgres stores board data in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkdrift/inkdrift/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS board_kv (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
)`

type DB struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and makes sure the table exists.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{pool: pool}, nil
}

func (d *DB) Close() error {
	d.pool.Close()
	return nil
}

func (d *DB) KV(namespace string) store.KV {
	return &kv{pool: d.pool, ns: namespace}
}

type kv struct {
	pool *pgxpool.Pool
	ns   string
}

func (k *kv) GetAll(ctx context.Context) ([]store.Record, error) {
	rows, err := k.pool.Query(ctx,
		`SELECT key, value FROM board_kv WHERE namespace = $1 ORDER BY key`, k.ns)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", k.ns, err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Record, error) {
		var r store.Record
		err := row.Scan(&r.Key, &r.Value)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", k.ns, err)
	}
	return recs, nil
}

func (k *kv) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := k.pool.QueryRow(ctx,
		`SELECT value FROM board_kv WHERE namespace = $1 AND key = $2`, k.ns, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", k.ns, key, err)
	}
	return v, nil
}

func (k *kv) Put(ctx context.Context, key string, value []byte) error {
	_, err := k.pool.Exec(ctx, `
		INSERT INTO board_kv (namespace, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		k.ns, key, value)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", k.ns, key, err)
	}
	return nil
}

func (k *kv) Delete(ctx context.Context, key string) error {
	if _, err := k.pool.Exec(ctx,
		`DELETE FROM board_kv WHERE namespace = $1 AND key = $2`, k.ns, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", k.ns, key, err)
	}
	return nil
}

func (k *kv) Clear(ctx context.Context) error {
	if _, err := k.pool.Exec(ctx, `DELETE FROM board_kv WHERE namespace = $1`, k.ns); err != nil {
		return fmt.Errorf("clear %s: %w", k.ns, err)
	}
	return nil
}
