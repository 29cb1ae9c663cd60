package crdt

import (
	"encoding/json"
	"sort"
)

// Change is one run of a delta: exactly one of Retain, Insert or Delete is set.
type Change struct {
	Retain int
	Insert []json.RawMessage
	Delete int
}

// Event describes how one array changed in one transaction.
type Event struct {
	Delta  []Change
	Origin string
	Local  bool
}

type opKind int

const (
	opInsert opKind = iota
	opRemove
	opReplace
)

// op records a change made through an array so it can be reverted.
type op struct {
	kind    opKind
	arr     *Array
	id      ID
	content json.RawMessage
}

// Txn is an open transaction. It is only valid inside the Transact callback.
type Txn struct {
	doc    *Doc
	origin string
	local  bool

	before   map[*Array][]*item
	inserted []*item
	deleted  []ID
	ops      []op

	events   []arrayEvent
	update   []byte
	handlers []func([]byte, string)
	hooks    []func(*Txn)
}

type arrayEvent struct {
	name      string
	ev        Event
	observers []func(Event)
}

func newTxn(d *Doc, origin string, local bool) *Txn {
	return &Txn{doc: d, origin: origin, local: local, before: make(map[*Array][]*item)}
}

func (tx *Txn) Origin() string { return tx.origin }

// touch snapshots the visible items of a before its first change.
func (tx *Txn) touch(a *Array) {
	if _, ok := tx.before[a]; ok {
		return
	}
	tx.before[a] = a.visibleItems()
}

// finish computes the deltas and the encoded update. Caller holds the doc lock.
func (tx *Txn) finish() {
	for a, before := range tx.before {
		delta := diff(a, before, a.visibleItems())
		if len(delta) == 0 {
			continue
		}
		tx.events = append(tx.events, arrayEvent{
			name:      a.name,
			ev:        Event{Delta: delta, Origin: tx.origin, Local: tx.local},
			observers: append([]func(Event){}, a.observers...),
		})
	}
	sort.Slice(tx.events, func(i, j int) bool { return tx.events[i].name < tx.events[j].name })

	if len(tx.inserted) > 0 || len(tx.deleted) > 0 {
		u := wireUpdate{Deleted: tx.deleted}
		for _, it := range tx.inserted {
			u.Items = append(u.Items, toWire(it))
		}
		tx.update, _ = json.Marshal(u)

		ids := make([]int, 0, len(tx.doc.updateHandlers))
		for id := range tx.doc.updateHandlers {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			tx.handlers = append(tx.handlers, tx.doc.updateHandlers[id])
		}
	}
	tx.hooks = append(tx.hooks, tx.doc.txnHandlers...)
}

// dispatch notifies observers, then transaction hooks, then update handlers.
func (tx *Txn) dispatch() {
	for _, ae := range tx.events {
		for _, fn := range ae.observers {
			fn(ae.ev)
		}
	}
	for _, fn := range tx.hooks {
		fn(tx)
	}
	if tx.update != nil {
		for _, fn := range tx.handlers {
			fn(tx.update, tx.origin)
		}
	}
}

// diff turns two visible lists of the same array into a delta. Both lists are
// in document order, and document order never changes for known items.
func diff(a *Array, before, after []*item) []Change {
	pos := make(map[*item]int, len(a.list))
	for i, it := range a.list {
		pos[it] = i
	}

	var out []Change
	push := func(c Change) {
		if n := len(out); n > 0 {
			last := &out[n-1]
			switch {
			case c.Retain > 0 && last.Retain > 0:
				last.Retain += c.Retain
				return
			case c.Delete > 0 && last.Delete > 0:
				last.Delete += c.Delete
				return
			case c.Insert != nil && last.Insert != nil:
				last.Insert = append(last.Insert, c.Insert...)
				return
			}
		}
		out = append(out, c)
	}

	i, j := 0, 0
	for i < len(before) || j < len(after) {
		switch {
		case i < len(before) && j < len(after) && before[i] == after[j]:
			push(Change{Retain: 1})
			i++
			j++
		case j >= len(after) || (i < len(before) && pos[before[i]] < pos[after[j]]):
			push(Change{Delete: 1})
			i++
		default:
			push(Change{Insert: []json.RawMessage{after[j].content}})
			j++
		}
	}

	// A trailing retain carries no information.
	if n := len(out); n > 0 && out[n-1].Retain > 0 {
		out = out[:n-1]
	}
	return out
}
