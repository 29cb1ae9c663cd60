package collab

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Broker fans room traffic out between relay instances.
type Broker interface {
	Publish(ctx context.Context, roomID string, data []byte) error
	// Subscribe delivers every message published for roomID until the
	// returned cancel func is called.
	Subscribe(ctx context.Context, roomID string, fn func(data []byte)) (cancel func(), err error)
}

// brokerMessage is what instances exchange. Instance lets a relay skip its
// own messages.
type brokerMessage struct {
	Instance string  `json:"instance"`
	Message  Message `json:"message"`
}

const channelPrefix = "inkdrift:room:"

// RedisBroker implements Broker with Redis pub/sub.
type RedisBroker struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewRedisBroker(rdb *redis.Client, logger *slog.Logger) *RedisBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroker{rdb: rdb, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, roomID string, data []byte) error {
	if err := b.rdb.Publish(ctx, channelPrefix+roomID, data).Err(); err != nil {
		return fmt.Errorf("publish room %s: %w", roomID, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, roomID string, fn func(data []byte)) (func(), error) {
	sub := b.rdb.Subscribe(ctx, channelPrefix+roomID)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe room %s: %w", roomID, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			fn([]byte(msg.Payload))
		}
	}()

	return func() {
		if err := sub.Close(); err != nil {
			b.logger.Warn("close subscription", "room", roomID, "error", err)
		}
		<-done
	}, nil
}

// LocalBroker connects hubs living in one process.
type LocalBroker struct {
	mu   sync.Mutex
	subs map[string]map[int]func([]byte)
	next int
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[int]func([]byte))}
}

func (b *LocalBroker) Publish(_ context.Context, roomID string, data []byte) error {
	b.mu.Lock()
	fns := make([]func([]byte), 0, len(b.subs[roomID]))
	for _, fn := range b.subs[roomID] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(data)
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, roomID string, fn func([]byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[int]func([]byte))
	}
	b.subs[roomID][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[roomID], id)
	}, nil
}
