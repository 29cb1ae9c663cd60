// Package boltstore keeps board data in a local bbolt file, one bucket per
// namespace. It backs offline persistence for clients and boardctl.
package boltstore

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/inkdrift/inkdrift/internal/store"
)

type DB struct {
	db *bolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) KV(namespace string) store.KV {
	return &kv{db: d.db, bucket: []byte(namespace)}
}

// Namespaces lists the buckets in the file.
func (d *DB) Namespaces() ([]string, error) {
	var out []string
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			out = append(out, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return out, nil
}

type kv struct {
	db     *bolt.DB
	bucket []byte
}

func (k *kv) GetAll(_ context.Context) ([]store.Record, error) {
	var out []store.Record
	err := k.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(k.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(key, value []byte) error {
			out = append(out, store.Record{
				Key:   string(key),
				Value: append([]byte(nil), value...),
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read bucket %s: %w", k.bucket, err)
	}
	return out, nil
}

func (k *kv) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := k.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(k.bucket)
		if b == nil {
			return store.ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return store.ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (k *kv) Put(_ context.Context, key string, value []byte) error {
	err := k.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(k.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", k.bucket, key, err)
	}
	return nil
}

func (k *kv) Delete(_ context.Context, key string) error {
	err := k.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(k.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", k.bucket, key, err)
	}
	return nil
}

func (k *kv) Clear(_ context.Context) error {
	err := k.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(k.bucket) == nil {
			return nil
		}
		return tx.DeleteBucket(k.bucket)
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", k.bucket, err)
	}
	return nil
}
