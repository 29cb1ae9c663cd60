// Package redisstore keeps each namespace in a Redis hash.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/inkdrift/inkdrift/internal/store"
)

const keyPrefix = "inkdrift:kv:"

type DB struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *DB {
	return &DB{rdb: rdb}
}

func (d *DB) Close() error {
	return d.rdb.Close()
}

func (d *DB) KV(namespace string) store.KV {
	return &kv{rdb: d.rdb, key: keyPrefix + namespace}
}

type kv struct {
	rdb *redis.Client
	key string
}

func (k *kv) GetAll(ctx context.Context) ([]store.Record, error) {
	m, err := k.rdb.HGetAll(ctx, k.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", k.key, err)
	}
	out := make([]store.Record, 0, len(m))
	for key, v := range m {
		out = append(out, store.Record{Key: key, Value: []byte(v)})
	}
	store.SortRecords(out)
	return out, nil
}

func (k *kv) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := k.rdb.HGet(ctx, k.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("hget %s %s: %w", k.key, key, err)
	}
	return v, nil
}

func (k *kv) Put(ctx context.Context, key string, value []byte) error {
	if err := k.rdb.HSet(ctx, k.key, key, value).Err(); err != nil {
		return fmt.Errorf("hset %s %s: %w", k.key, key, err)
	}
	return nil
}

func (k *kv) Delete(ctx context.Context, key string) error {
	if err := k.rdb.HDel(ctx, k.key, key).Err(); err != nil {
		return fmt.Errorf("hdel %s %s: %w", k.key, key, err)
	}
	return nil
}

func (k *kv) Clear(ctx context.Context) error {
	if err := k.rdb.Del(ctx, k.key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", k.key, err)
	}
	return nil
}
