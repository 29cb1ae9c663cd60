// Package awareness holds the ephemeral per-peer presence state of a board:
// cursors, edited boxes, drag rectangles, locked shapes and draft previews.
//
// Every peer owns one state, a map of named JSON fields, and a clock that it
// bumps on each local change. A remote state replaces the stored one only when
// its clock is newer, so concurrent updates resolve last-write-wins per peer.
// A nil state means the peer left. Nothing here is persisted.
package awareness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// OriginLocal tags changes made through SetLocalField and SetLocalState.
const OriginLocal = "local"

var ErrInvalidUpdate = errors.New("invalid awareness update")

// State is one peer's published fields.
type State map[string]json.RawMessage

func (s State) clone() State {
	if s == nil {
		return nil
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Decode unmarshals field key into v. It reports false when the field is
// absent or null.
func (s State) Decode(key string, v any) bool {
	raw, ok := s[key]
	if !ok || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// Change lists the peers touched by one local call or one applied update,
// followed by a snapshot of every online peer.
type Change struct {
	Added   []string
	Updated []string
	Removed []string
	Origin  string
	States  map[string]State
}

// Local reports whether the change came from this peer.
func (c Change) Local() bool { return c.Origin == OriginLocal }

// Touched returns every client ID the change mentions.
func (c Change) Touched() []string {
	return slices.Concat(c.Added, c.Updated, c.Removed)
}

type entry struct {
	clock uint64
	state State
}

type Awareness struct {
	clientID string

	mu        sync.RWMutex
	entries   map[string]entry
	listeners map[int]func(Change)
	nextID    int
}

// New returns an awareness instance whose local peer starts online with an
// empty state.
func New(clientID string) *Awareness {
	return &Awareness{
		clientID:  clientID,
		entries:   map[string]entry{clientID: {state: State{}}},
		listeners: make(map[int]func(Change)),
	}
}

func (a *Awareness) ClientID() string { return a.clientID }

// OnChange registers fn for every change. The returned func unsubscribes.
func (a *Awareness) OnChange(fn func(Change)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

// LocalState returns a copy of the local fields, or nil after SetLocalState(nil).
func (a *Awareness) LocalState() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.entries[a.clientID].state.clone()
}

// SetLocalState replaces every local field. nil marks the local peer offline,
// which peers see as a removal.
func (a *Awareness) SetLocalState(s State) {
	a.mu.Lock()
	prev := a.entries[a.clientID]
	next := entry{clock: prev.clock + 1, state: s.clone()}
	a.entries[a.clientID] = next

	ch := Change{Origin: OriginLocal}
	switch {
	case next.state == nil && prev.state != nil:
		ch.Removed = []string{a.clientID}
	case next.state != nil && prev.state == nil:
		ch.Added = []string{a.clientID}
	default:
		ch.Updated = []string{a.clientID}
	}
	a.emitLocked(ch)
}

// SetLocalField sets one local field. A nil value stores JSON null, which
// every reader treats as "not applicable". Setting a field to the value it
// already has is a no-op.
func (a *Awareness) SetLocalField(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal awareness field %s: %w", key, err)
	}

	a.mu.Lock()
	prev := a.entries[a.clientID]
	if prev.state == nil {
		a.mu.Unlock()
		return nil
	}
	if old, ok := prev.state[key]; ok && bytes.Equal(old, raw) {
		a.mu.Unlock()
		return nil
	}
	state := prev.state.clone()
	state[key] = raw
	a.entries[a.clientID] = entry{clock: prev.clock + 1, state: state}
	a.emitLocked(Change{Updated: []string{a.clientID}, Origin: OriginLocal})
	return nil
}

// States returns a copy of every online peer's state, the local one included.
func (a *Awareness) States() map[string]State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

func (a *Awareness) snapshotLocked() map[string]State {
	out := make(map[string]State, len(a.entries))
	for id, e := range a.entries {
		if e.state != nil {
			out[id] = e.state.clone()
		}
	}
	return out
}

// Remove drops the given peers, as the relay does when a connection closes.
// The local peer is never removed this way.
func (a *Awareness) Remove(clients []string, origin string) {
	a.mu.Lock()
	ch := Change{Origin: origin}
	for _, id := range clients {
		if id == a.clientID {
			continue
		}
		e, ok := a.entries[id]
		if !ok || e.state == nil {
			continue
		}
		a.entries[id] = entry{clock: e.clock, state: nil}
		ch.Removed = append(ch.Removed, id)
	}
	if len(ch.Removed) == 0 {
		a.mu.Unlock()
		return
	}
	a.emitLocked(ch)
}

// emitLocked releases a.mu and runs the listeners with a fresh snapshot.
func (a *Awareness) emitLocked(ch Change) {
	ch.States = a.snapshotLocked()
	listeners := make([]func(Change), 0, len(a.listeners))
	for _, k := range slices.Sorted(maps.Keys(a.listeners)) {
		listeners = append(listeners, a.listeners[k])
	}
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(ch)
	}
}
