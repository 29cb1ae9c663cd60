package shape

import "sync"

// Splice is one step of an ordered delta: skip Retain entries, remove Delete
// entries, then insert Insert at the cursor.
type Splice struct {
	Retain int
	Delete int
	Insert []Shape
}

// Registry is the ordered collection of shapes. Slice order is z-order; the
// ID index always holds exactly the members of the slice.
type Registry struct {
	mu    sync.RWMutex
	order []Shape
	byID  map[string]Shape
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Shape)}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// All returns a snapshot of the shapes in z-order.
func (r *Registry) All() []Shape {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Shape(nil), r.order...)
}

func (r *Registry) Get(id string) (Shape, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// IndexOf returns the z-order position of id, or -1.
func (r *Registry) IndexOf(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexOf(id)
}

func (r *Registry) indexOf(id string) int {
	for i, s := range r.order {
		if s.ID() == id {
			return i
		}
	}
	return -1
}

// Lookup returns the shapes for ids in the order given, skipping unknown ids.
func (r *Registry) Lookup(ids []string) []Shape {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Shape, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Insert(at int, shapes ...Shape) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insert(at, shapes)
}

func (r *Registry) Push(shapes ...Shape) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insert(len(r.order), shapes)
}

func (r *Registry) Delete(at, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delete(at, n)
}

// Reset replaces the whole collection.
func (r *Registry) Reset(shapes []Shape) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.byID = make(map[string]Shape, len(shapes))
	r.insert(0, shapes)
}

// ApplyDelta applies the splices in one critical section.
func (r *Registry) ApplyDelta(delta []Splice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cursor := 0
	for _, d := range delta {
		cursor += d.Retain
		if d.Delete > 0 {
			r.delete(cursor, d.Delete)
		}
		if len(d.Insert) > 0 {
			r.insert(cursor, d.Insert)
			cursor += len(d.Insert)
		}
	}
}

func (r *Registry) insert(at int, shapes []Shape) {
	if at < 0 {
		at = 0
	}
	if at > len(r.order) {
		at = len(r.order)
	}
	next := make([]Shape, 0, len(r.order)+len(shapes))
	next = append(next, r.order[:at]...)
	next = append(next, shapes...)
	next = append(next, r.order[at:]...)
	r.order = next
	for _, s := range shapes {
		r.byID[s.ID()] = s
	}
}

func (r *Registry) delete(at, n int) {
	if at < 0 || at >= len(r.order) || n <= 0 {
		return
	}
	end := min(at+n, len(r.order))
	for _, s := range r.order[at:end] {
		// A replacement for the same id may already be indexed.
		if r.byID[s.ID()] == s {
			delete(r.byID, s.ID())
		}
	}
	r.order = append(r.order[:at:at], r.order[end:]...)
}
