package replica

import (
	"sync"
	"time"

	"github.com/inkdrift/inkdrift/internal/shape"
)

// DefaultThrottleInterval is one display frame.
const DefaultThrottleInterval = 16 * time.Millisecond

// Updater receives batched whole-shape updates. *Replica implements it.
type Updater interface {
	UpdateMany(shapes []shape.Shape)
}

// Throttle coalesces high-frequency shape updates. Updates for the same shape
// overwrite each other; pending updates are pushed at most once per interval
// and always on Flush, so the final state is never dropped.
type Throttle struct {
	target   Updater
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]shape.Shape
	order   []string
	last    time.Time
}

func NewThrottle(target Updater, interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	return &Throttle{
		target:   target,
		interval: interval,
		now:      time.Now,
		pending:  make(map[string]shape.Shape),
	}
}

// Update queues s and pushes the queue if the interval has elapsed.
func (t *Throttle) Update(s shape.Shape) {
	t.mu.Lock()
	if _, ok := t.pending[s.ID()]; !ok {
		t.order = append(t.order, s.ID())
	}
	t.pending[s.ID()] = s.Clone()
	due := t.now().Sub(t.last) >= t.interval
	t.mu.Unlock()

	if due {
		t.Flush()
	}
}

// Pending reports how many shapes wait to be pushed.
func (t *Throttle) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Discard drops the pending update for id, if any.
func (t *Throttle) Discard(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[id]; !ok {
		return
	}
	delete(t.pending, id)
	for i, o := range t.order {
		if o == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Flush pushes every pending update in one batch.
func (t *Throttle) Flush() {
	t.mu.Lock()
	if len(t.order) == 0 {
		t.mu.Unlock()
		return
	}
	batch := make([]shape.Shape, 0, len(t.order))
	for _, id := range t.order {
		batch = append(batch, t.pending[id])
	}
	t.pending = make(map[string]shape.Shape)
	t.order = nil
	t.last = t.now()
	t.mu.Unlock()

	t.target.UpdateMany(batch)
}
