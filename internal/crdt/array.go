package crdt

import (
	"encoding/json"
	"log/slog"
)

// Array is an ordered sequence of JSON values inside a Doc. Mutations go
// through a Txn; reads take the document lock.
type Array struct {
	doc       *Doc
	name      string
	list      []*item
	observers []func(Event)
}

func (a *Array) Name() string { return a.name }

// Observe registers fn to receive the delta of every transaction that changed
// the visible contents of a.
func (a *Array) Observe(fn func(Event)) {
	a.doc.mu.Lock()
	defer a.doc.mu.Unlock()
	a.observers = append(a.observers, fn)
}

func (a *Array) Len() int {
	a.doc.mu.Lock()
	defer a.doc.mu.Unlock()
	return len(a.visibleItems())
}

// ToSlice returns the visible values in order.
func (a *Array) ToSlice() []json.RawMessage {
	a.doc.mu.Lock()
	defer a.doc.mu.Unlock()
	items := a.visibleItems()
	out := make([]json.RawMessage, len(items))
	for i, it := range items {
		out[i] = it.content
	}
	return out
}

func (a *Array) Get(index int) (json.RawMessage, bool) {
	a.doc.mu.Lock()
	defer a.doc.mu.Unlock()
	items := a.visibleItems()
	if index < 0 || index >= len(items) {
		return nil, false
	}
	return items[index].content, true
}

// IndexFunc returns the index of the first visible value match accepts, or -1.
// It reads the state as of the running transaction.
func (a *Array) IndexFunc(tx *Txn, match func(json.RawMessage) bool) int {
	a.check(tx)
	for i, it := range a.visibleItems() {
		if match(it.content) {
			return i
		}
	}
	return -1
}

// Insert places values at index, shifting later values right.
func (a *Array) Insert(tx *Txn, index int, values ...json.RawMessage) {
	a.check(tx)
	items := a.visibleItems()
	if index < 0 || index > len(items) {
		slog.Warn("crdt: insert index out of range", "array", a.name, "index", index, "len", len(items))
		return
	}
	var left *item
	if index > 0 {
		left = items[index-1]
	}
	for _, v := range values {
		left = a.insertAfter(tx, left, nil, v)
	}
}

func (a *Array) Push(tx *Txn, values ...json.RawMessage) {
	a.check(tx)
	a.Insert(tx, len(a.visibleItems()), values...)
}

// Delete removes length values starting at index.
func (a *Array) Delete(tx *Txn, index, length int) {
	a.check(tx)
	items := a.visibleItems()
	if index < 0 || length <= 0 || index+length > len(items) {
		slog.Warn("crdt: delete range out of bounds", "array", a.name, "index", index, "length", length, "len", len(items))
		return
	}
	for _, it := range items[index : index+length] {
		a.remove(tx, it)
	}
}

// Clear removes every value.
func (a *Array) Clear(tx *Txn) {
	a.check(tx)
	for _, it := range a.visibleItems() {
		a.remove(tx, it)
	}
}

// Replace swaps the value at index for v, keeping its position. A concurrent
// delete of the old value also hides v.
func (a *Array) Replace(tx *Txn, index int, v json.RawMessage) {
	a.check(tx)
	items := a.visibleItems()
	if index < 0 || index >= len(items) {
		slog.Warn("crdt: replace index out of range", "array", a.name, "index", index, "len", len(items))
		return
	}
	a.replace(tx, items[index], v)
}

func (a *Array) check(tx *Txn) {
	if tx == nil || tx.doc != a.doc {
		panic("crdt: array used with a transaction from another document")
	}
}

func (a *Array) insertAfter(tx *Txn, left, replaces *item, v json.RawMessage) *item {
	id, lamport := a.doc.nextID()
	it := &item{
		id:       id,
		lamport:  lamport,
		arr:      a,
		origin:   left,
		replaces: replaces,
		content:  append(json.RawMessage(nil), v...),
	}
	a.doc.integrate(tx, it)
	if replaces == nil {
		tx.ops = append(tx.ops, op{kind: opInsert, arr: a, id: it.id})
	}
	return it
}

// remove tombstones the root of its chain so concurrent replacements stay hidden.
func (a *Array) remove(tx *Txn, it *item) {
	root := it.root()
	a.doc.markDeleted(tx, root.id)
	tx.ops = append(tx.ops, op{kind: opRemove, arr: a, id: root.id, content: it.content})
}

func (a *Array) replace(tx *Txn, it *item, v json.RawMessage) *item {
	n := a.insertAfter(tx, it, it, v)
	tx.ops = append(tx.ops, op{kind: opReplace, arr: a, id: n.id, content: it.content})
	return n
}

// place inserts it into document order after its origin, skipping concurrent
// siblings with a higher key.
func (a *Array) place(it *item) {
	i := 0
	if it.origin != nil {
		for k, x := range a.list {
			if x == it.origin {
				i = k + 1
				break
			}
		}
	}
	for i < len(a.list) && a.list[i].newer(it) {
		i++
	}
	a.list = append(a.list, nil)
	copy(a.list[i+1:], a.list[i:])
	a.list[i] = it
}

func (a *Array) visibleItems() []*item {
	out := make([]*item, 0, len(a.list))
	for _, it := range a.list {
		if a.doc.visible(it) {
			out = append(out, it)
		}
	}
	return out
}
