// Package crdt implements the replicated document the board state lives in: named
// ordered arrays of JSON values that converge across peers, with transactions
// tagged by origin, per-transaction change deltas and an undo manager scoped
// to chosen origins.
//
// Ordering follows RGA: an item is placed after its left origin, skipping
// concurrent siblings with a higher (lamport, client) key. Deletes are
// tombstones. Replace links a new item to the one it supersedes; removing any
// item of a replacement chain hides the whole chain, and concurrent
// replacements of the same item resolve to the highest key.
package crdt

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ID identifies an item. Seq is contiguous per client.
type ID struct {
	Client string `json:"c"`
	Seq    uint64 `json:"s"`
}

func (id ID) String() string { return fmt.Sprintf("%s:%d", id.Client, id.Seq) }

// StateVector maps a client to the number of its items a doc has integrated.
type StateVector map[string]uint64

type item struct {
	id       ID
	lamport  uint64
	arr      *Array
	origin   *item
	replaces *item
	content  json.RawMessage

	children []*item
}

// newer reports whether it has the higher (lamport, client) key.
func (it *item) newer(o *item) bool {
	if it.lamport != o.lamport {
		return it.lamport > o.lamport
	}
	return it.id.Client > o.id.Client
}

func (it *item) root() *item {
	for it.replaces != nil {
		it = it.replaces
	}
	return it
}

// winner returns the child replacement that supersedes it, or nil.
func (it *item) winner() *item {
	var w *item
	for _, c := range it.children {
		if w == nil || c.newer(w) {
			w = c
		}
	}
	return w
}

// leaf descends the winning replacements from it.
func (it *item) leaf() *item {
	for w := it.winner(); w != nil; w = it.winner() {
		it = w
	}
	return it
}

// Doc is a replicated document. All methods are safe for concurrent use.
// Transact must not be called from inside another transaction.
type Doc struct {
	mu       sync.Mutex
	clientID string
	clock    uint64

	arraysMu sync.Mutex
	arrays   map[string]*Array

	items   map[ID]*item
	log     []*item
	sv      StateVector
	deleted map[ID]struct{}
	pending []wireItem

	nextHandler    int
	updateHandlers map[int]func(update []byte, origin string)
	txnHandlers    []func(*Txn)

	// Finished transactions wait here so notifications keep commit order.
	queue    []*Txn
	draining bool
}

// NewDoc creates an empty document. An empty clientID gets a random one.
func NewDoc(clientID string) *Doc {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return &Doc{
		clientID:       clientID,
		arrays:         make(map[string]*Array),
		items:          make(map[ID]*item),
		sv:             make(StateVector),
		deleted:        make(map[ID]struct{}),
		updateHandlers: make(map[int]func([]byte, string)),
	}
}

func (d *Doc) ClientID() string { return d.clientID }

// Array returns the named array, creating it on first use. It may be called
// inside a transaction.
func (d *Doc) Array(name string) *Array {
	return d.array(name)
}

func (d *Doc) array(name string) *Array {
	d.arraysMu.Lock()
	defer d.arraysMu.Unlock()
	a, ok := d.arrays[name]
	if !ok {
		a = &Array{doc: d, name: name}
		d.arrays[name] = a
	}
	return a
}

// OnUpdate registers fn to receive the encoded changes of every transaction
// and every applied update that changed the document. The returned func
// unregisters it.
func (d *Doc) OnUpdate(fn func(update []byte, origin string)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextHandler
	d.nextHandler++
	d.updateHandlers[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.updateHandlers, id)
	}
}

func (d *Doc) onTransaction(fn func(*Txn)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txnHandlers = append(d.txnHandlers, fn)
}

// Transact runs fn as one local transaction. Observers, transaction hooks and
// update handlers run after fn returns, outside the document lock and in
// commit order. A transaction started from a handler is notified after the
// current one completes.
func (d *Doc) Transact(origin string, fn func(tx *Txn)) {
	d.run(origin, true, fn)
	d.drain()
}

// ApplyUpdate merges a remote update. Applying the same update twice, or
// updates out of causal order, is safe: items whose dependencies are missing
// wait until they arrive.
func (d *Doc) ApplyUpdate(data []byte, origin string) error {
	var u wireUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	d.run(origin, false, func(tx *Txn) {
		for _, wi := range u.Items {
			if wi.ID.Seq < d.sv[wi.ID.Client] {
				continue
			}
			d.pending = append(d.pending, wi)
		}
		d.drainPending(tx)
		for _, id := range u.Deleted {
			d.markDeleted(tx, id)
		}
	})
	d.drain()
	return nil
}

func (d *Doc) run(origin string, local bool, fn func(tx *Txn)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tx := newTxn(d, origin, local)
	fn(tx)
	tx.finish()
	d.queue = append(d.queue, tx)
}

// drain dispatches queued transactions unless another caller already is.
func (d *Doc) drain() {
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		return
	}
	d.draining = true
	for len(d.queue) > 0 {
		tx := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()
		tx.dispatch()
		d.mu.Lock()
	}
	d.draining = false
	d.mu.Unlock()
}

// StateVector returns a copy of the integrated item counts per client.
func (d *Doc) StateVector() StateVector {
	d.mu.Lock()
	defer d.mu.Unlock()
	sv := make(StateVector, len(d.sv))
	for k, v := range d.sv {
		sv[k] = v
	}
	return sv
}

// EncodeStateAsUpdate encodes every item the holder of sv is missing, plus the
// full delete set. A nil sv encodes the whole document.
func (d *Doc) EncodeStateAsUpdate(sv StateVector) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := wireUpdate{}
	for _, it := range d.log {
		if it.id.Seq >= sv[it.id.Client] {
			u.Items = append(u.Items, toWire(it))
		}
	}
	u.Deleted = d.deletedIDs()
	data, _ := json.Marshal(u)
	return data
}

// PendingCount reports how many received items still wait for dependencies.
func (d *Doc) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Doc) deletedIDs() []ID {
	ids := make([]ID, 0, len(d.deleted))
	for id := range d.deleted {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Client != ids[j].Client {
			return ids[i].Client < ids[j].Client
		}
		return ids[i].Seq < ids[j].Seq
	})
	return ids
}

func (d *Doc) isDeleted(it *item) bool {
	_, ok := d.deleted[it.id]
	return ok
}

// visible reports whether it is the live end of an undeleted chain.
func (d *Doc) visible(it *item) bool {
	if len(it.children) > 0 {
		return false
	}
	for x := it; x != nil; x = x.replaces {
		if d.isDeleted(x) {
			return false
		}
		if p := x.replaces; p != nil && p.winner() != x {
			return false
		}
	}
	return true
}

func (d *Doc) markDeleted(tx *Txn, id ID) {
	if _, ok := d.deleted[id]; ok {
		return
	}
	if it, ok := d.items[id]; ok {
		tx.touch(it.arr)
	}
	d.deleted[id] = struct{}{}
	tx.deleted = append(tx.deleted, id)
}

func (d *Doc) nextID() (ID, uint64) {
	id := ID{Client: d.clientID, Seq: d.sv[d.clientID]}
	d.clock++
	return id, d.clock
}

// integrate places it in its array and records it as known.
func (d *Doc) integrate(tx *Txn, it *item) {
	tx.touch(it.arr)
	it.arr.place(it)
	if it.replaces != nil {
		it.replaces.children = append(it.replaces.children, it)
	}
	d.items[it.id] = it
	d.log = append(d.log, it)
	d.sv[it.id.Client] = it.id.Seq + 1
	if it.lamport > d.clock {
		d.clock = it.lamport
	}
	tx.inserted = append(tx.inserted, it)
}

func (d *Doc) ready(wi wireItem) bool {
	if wi.ID.Seq != d.sv[wi.ID.Client] {
		return false
	}
	if wi.Origin != nil {
		if _, ok := d.items[*wi.Origin]; !ok {
			return false
		}
	}
	if wi.Replaces != nil {
		if _, ok := d.items[*wi.Replaces]; !ok {
			return false
		}
	}
	return true
}

func (d *Doc) drainPending(tx *Txn) {
	for progress := true; progress; {
		progress = false
		rest := d.pending[:0]
		for _, wi := range d.pending {
			if wi.ID.Seq < d.sv[wi.ID.Client] {
				progress = true
				continue
			}
			if !d.ready(wi) {
				rest = append(rest, wi)
				continue
			}
			it := &item{
				id:      wi.ID,
				lamport: wi.Lamport,
				arr:     d.array(wi.Array),
				content: wi.Content,
			}
			if wi.Origin != nil {
				it.origin = d.items[*wi.Origin]
			}
			if wi.Replaces != nil {
				it.replaces = d.items[*wi.Replaces]
			}
			d.integrate(tx, it)
			progress = true
		}
		d.pending = rest
	}
}
