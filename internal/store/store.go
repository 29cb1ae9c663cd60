// Package store defines the key-value persistence used for board durability and
// room metadata, plus an in-memory implementation. Backends live in the
// boltstore, postgres and redisstore subpackages.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("key not found")

// Record is one stored key/value pair.
type Record struct {
	Key   string
	Value []byte
}

// KV is a flat key-value namespace. GetAll returns records ordered by key.
type KV interface {
	GetAll(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Provider hands out one KV namespace per name (usually a room ID).
type Provider interface {
	KV(namespace string) KV
	Close() error
}

// Memory is an in-process Provider. Its data is lost on exit.
type Memory struct {
	mu     sync.Mutex
	spaces map[string]*memoryKV
}

func NewMemory() *Memory {
	return &Memory{spaces: make(map[string]*memoryKV)}
}

func (m *Memory) KV(namespace string) KV {
	m.mu.Lock()
	defer m.mu.Unlock()
	kv, ok := m.spaces[namespace]
	if !ok {
		kv = &memoryKV{data: make(map[string][]byte)}
		m.spaces[namespace] = kv
	}
	return kv
}

func (m *Memory) Close() error { return nil }

type memoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (kv *memoryKV) GetAll(_ context.Context) ([]Record, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	out := make([]Record, 0, len(kv.data))
	for k, v := range kv.data {
		out = append(out, Record{Key: k, Value: append([]byte(nil), v...)})
	}
	SortRecords(out)
	return out, nil
}

func (kv *memoryKV) Get(_ context.Context, key string) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (kv *memoryKV) Put(_ context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = append([]byte(nil), value...)
	return nil
}

func (kv *memoryKV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
	return nil
}

func (kv *memoryKV) Clear(_ context.Context) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data = make(map[string][]byte)
	return nil
}

// SortRecords orders records by key.
func SortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })
}
