package replica

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/inkdrift/inkdrift/internal/crdt"
	"github.com/inkdrift/inkdrift/internal/store"
)

const (
	// OriginPersistence tags updates replayed from storage.
	OriginPersistence = "persistence"
	// DefaultCompactAfter is the number of stored updates that triggers
	// compaction into a single full-state record.
	DefaultCompactAfter = 500

	updatePrefix = "update/"
)

// updateKey namespaces keys by writer so that persisters sharing one KV never
// overwrite each other.
func updateKey(instance string, n uint64) string {
	return fmt.Sprintf("%s%s/%020d", updatePrefix, instance, n)
}

// Persister mirrors every update of a doc into a store.KV and replays the stored
// updates on start. Writes happen on a background goroutine and are not
// awaited by the caller. Several persisters may share a KV.
type Persister struct {
	doc      *crdt.Doc
	kv       store.KV
	logger   *slog.Logger
	instance string

	updates chan []byte
	done    chan struct{}
	stop    func()

	compactAfter int

	mu     sync.Mutex
	next   uint64
	closed bool
	// keys holds every stored update already merged into doc. Only these
	// are removed by compaction.
	keys []string
}

type PersistOptions struct {
	// CompactAfter defaults to DefaultCompactAfter.
	CompactAfter int
	Logger       *slog.Logger
}

// NewPersister loads kv into doc and starts mirroring doc updates into kv.
func NewPersister(ctx context.Context, doc *crdt.Doc, kv store.KV, opts PersistOptions) (*Persister, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	compactAfter := opts.CompactAfter
	if compactAfter <= 0 {
		compactAfter = DefaultCompactAfter
	}
	p := &Persister{
		doc:          doc,
		kv:           kv,
		logger:       logger,
		instance:     uuid.NewString(),
		compactAfter: compactAfter,
		updates:      make(chan []byte, 256),
		done:         make(chan struct{}),
	}
	if err := p.load(ctx); err != nil {
		return nil, err
	}
	p.stop = doc.OnUpdate(func(update []byte, origin string) {
		if origin == OriginPersistence {
			return
		}
		p.enqueue(update)
	})
	go p.run(ctx)
	return p, nil
}

// Persist binds the replica's doc to kv. See NewPersister.
func (r *Replica) Persist(ctx context.Context, kv store.KV) (*Persister, error) {
	return NewPersister(ctx, r.doc, kv, PersistOptions{Logger: r.logger})
}

func (p *Persister) load(ctx context.Context) error {
	recs, err := p.kv.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load updates: %w", err)
	}
	var updates [][]byte
	var keys []string
	for _, rec := range recs {
		if !strings.HasPrefix(rec.Key, updatePrefix) {
			continue
		}
		updates = append(updates, rec.Value)
		keys = append(keys, rec.Key)
	}
	if len(updates) == 0 {
		return nil
	}
	merged, err := crdt.MergeUpdates(updates...)
	if err != nil {
		return fmt.Errorf("merge stored updates: %w", err)
	}
	if err := p.doc.ApplyUpdate(merged, OriginPersistence); err != nil {
		return fmt.Errorf("apply stored updates: %w", err)
	}
	p.keys = keys
	p.logger.Debug("persistence loaded", "updates", len(updates))
	return nil
}

func (p *Persister) enqueue(update []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.updates <- update
}

func (p *Persister) run(ctx context.Context) {
	defer close(p.done)
	for update := range p.updates {
		if err := p.write(ctx, update); err != nil {
			p.logger.Error("persist update", "error", err)
		}
	}
}

func (p *Persister) write(ctx context.Context, update []byte) error {
	key := updateKey(p.instance, p.next)
	p.next++
	if err := p.kv.Put(ctx, key, update); err != nil {
		return err
	}
	p.keys = append(p.keys, key)
	if len(p.keys) < p.compactAfter {
		return nil
	}
	return p.compact(ctx)
}

// compact replaces the updates this persister knows about by one full-state
// record. Updates written meanwhile by other persisters on the same KV are
// left in place.
func (p *Persister) compact(ctx context.Context) error {
	key := updateKey(p.instance, p.next)
	p.next++
	if err := p.kv.Put(ctx, key, p.doc.EncodeStateAsUpdate(nil)); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	for _, k := range p.keys {
		if err := p.kv.Delete(ctx, k); err != nil {
			return fmt.Errorf("compact: %w", err)
		}
	}
	p.keys = []string{key}
	return nil
}

// Close stops listening and waits for queued writes to finish.
func (p *Persister) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.stop()
	close(p.updates)
	p.mu.Unlock()
	<-p.done
}

// Restore builds a detached replica from the updates stored in kv. Nothing is
// written back.
func Restore(ctx context.Context, kv store.KV, logger *slog.Logger) (*Replica, error) {
	if logger == nil {
		logger = slog.Default()
	}
	doc := crdt.NewDoc("")
	p := &Persister{doc: doc, kv: kv, logger: logger}
	if err := p.load(ctx); err != nil {
		return nil, err
	}
	return New(doc, Options{Logger: logger}), nil
}
