// Package replica binds the shared "shapes" array of a crdt.Doc to a local
// shape.Registry. Every local mutation is a named transaction; every observed
// delta, local or remote, is spliced into the registry.
package replica

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/inkdrift/inkdrift/internal/crdt"
	"github.com/inkdrift/inkdrift/internal/shape"
)

// Transaction origins. Only these are undoable.
const (
	OriginCreate     = "createShape"
	OriginRemove     = "removeShape"
	OriginRemoveMany = "removeManyShapes"
	OriginUpdate     = "updateShape"
	OriginReset      = "resetShapes"
)

const ArrayName = "shapes"

var TrackedOrigins = []string{OriginCreate, OriginRemove, OriginRemoveMany, OriginUpdate, OriginReset}

// Change tells listeners that the registry was updated.
type Change struct {
	Origin string
	Local  bool
}

type Options struct {
	// UndoCaptureTimeout merges tracked transactions closer together than this.
	UndoCaptureTimeout time.Duration
	Logger             *slog.Logger
}

type Replica struct {
	doc    *crdt.Doc
	arr    *crdt.Array
	reg    *shape.Registry
	undo   *crdt.UndoManager
	logger *slog.Logger

	mu        sync.Mutex
	listeners []func(Change)
	// lossy is set once a stored value failed to decode; from then on the
	// registry is rebuilt from the array on every change.
	lossy bool
}

func New(doc *crdt.Doc, opts Options) *Replica {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	arr := doc.Array(ArrayName)
	r := &Replica{
		doc:    doc,
		arr:    arr,
		reg:    shape.NewRegistry(),
		undo:   crdt.NewUndoManager(arr, TrackedOrigins, opts.UndoCaptureTimeout),
		logger: logger,
	}
	arr.Observe(r.observe)
	r.resync()
	return r
}

func (r *Replica) Doc() *crdt.Doc { return r.doc }

// Shapes returns the local mirror.
func (r *Replica) Shapes() *shape.Registry { return r.reg }

// OnChange registers fn to run after every batch applied to the registry.
func (r *Replica) OnChange(fn func(Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Replica) observe(ev crdt.Event) {
	r.mu.Lock()
	lossy := r.lossy
	r.mu.Unlock()

	if lossy {
		r.resync()
	} else if err := r.applyDelta(ev.Delta); err != nil {
		r.logger.Error("replica: undecodable shape, rebuilding mirror", "error", err)
		r.mu.Lock()
		r.lossy = true
		r.mu.Unlock()
		r.resync()
	}

	r.mu.Lock()
	listeners := append([]func(Change){}, r.listeners...)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(Change{Origin: ev.Origin, Local: ev.Local})
	}
}

func (r *Replica) applyDelta(delta []crdt.Change) error {
	splices := make([]shape.Splice, 0, len(delta))
	for _, c := range delta {
		sp := shape.Splice{Retain: c.Retain, Delete: c.Delete}
		for _, raw := range c.Insert {
			s, err := shape.Unmarshal(raw)
			if err != nil {
				return err
			}
			sp.Insert = append(sp.Insert, s)
		}
		splices = append(splices, sp)
	}
	r.reg.ApplyDelta(splices)
	return nil
}

func (r *Replica) resync() {
	raws := r.arr.ToSlice()
	shapes := make([]shape.Shape, 0, len(raws))
	for _, raw := range raws {
		s, err := shape.Unmarshal(raw)
		if err != nil {
			r.logger.Warn("replica: skipping undecodable shape", "error", err)
			continue
		}
		shapes = append(shapes, s)
	}
	r.reg.Reset(shapes)
}

// Push appends a shape.
func (r *Replica) Push(s shape.Shape) error {
	return r.PushMany([]shape.Shape{s})
}

// PushMany appends shapes in one create transaction.
func (r *Replica) PushMany(shapes []shape.Shape) error {
	raws := make([]json.RawMessage, 0, len(shapes))
	for _, s := range shapes {
		data, err := shape.Marshal(s)
		if err != nil {
			return err
		}
		raws = append(raws, data)
	}
	r.doc.Transact(OriginCreate, func(tx *crdt.Txn) {
		r.arr.Push(tx, raws...)
	})
	return nil
}

// Update replaces the stored shape with the same ID by s. s must be the whole
// shape. A missing ID is logged and ignored.
func (r *Replica) Update(s shape.Shape) {
	r.UpdateMany([]shape.Shape{s})
}

// UpdateMany applies several whole-shape updates in one transaction.
func (r *Replica) UpdateMany(shapes []shape.Shape) {
	type pending struct {
		id  string
		raw json.RawMessage
	}
	batch := make([]pending, 0, len(shapes))
	for _, s := range shapes {
		data, err := shape.Marshal(s)
		if err != nil {
			r.logger.Error("replica: marshal shape", "id", s.ID(), "error", err)
			continue
		}
		batch = append(batch, pending{id: s.ID(), raw: data})
	}
	if len(batch) == 0 {
		return
	}
	r.doc.Transact(OriginUpdate, func(tx *crdt.Txn) {
		for _, p := range batch {
			i := r.indexOf(tx, p.id)
			if i < 0 {
				r.logger.Warn("replica: update of unknown shape", "id", p.id)
				continue
			}
			r.arr.Replace(tx, i, p.raw)
		}
	})
}

// Remove deletes one shape by ID.
func (r *Replica) Remove(id string) {
	r.removeIDs(OriginRemove, []string{id})
}

// RemoveByIDs deletes every listed shape in one transaction.
func (r *Replica) RemoveByIDs(ids []string) {
	if len(ids) == 0 {
		return
	}
	r.removeIDs(OriginRemoveMany, ids)
}

func (r *Replica) removeIDs(origin string, ids []string) {
	r.doc.Transact(origin, func(tx *crdt.Txn) {
		for _, id := range ids {
			i := r.indexOf(tx, id)
			if i < 0 {
				r.logger.Warn("replica: remove of unknown shape", "id", id)
				continue
			}
			r.arr.Delete(tx, i, 1)
		}
	})
}

// ResetRoom deletes every shape in one transaction.
func (r *Replica) ResetRoom() {
	r.doc.Transact(OriginReset, func(tx *crdt.Txn) {
		r.arr.Clear(tx)
	})
}

func (r *Replica) indexOf(tx *crdt.Txn, id string) int {
	return r.arr.IndexFunc(tx, func(raw json.RawMessage) bool {
		var head struct {
			ID string `json:"id"`
		}
		return json.Unmarshal(raw, &head) == nil && head.ID == id
	})
}

// Undo reverts the latest tracked transaction of this client.
func (r *Replica) Undo() bool { return r.undo.Undo() }

func (r *Replica) Redo() bool { return r.undo.Redo() }

func (r *Replica) CanUndo() bool { return r.undo.CanUndo() }

func (r *Replica) CanRedo() bool { return r.undo.CanRedo() }

// StopCapturing ends the current undo step, so the next change is undone on
// its own.
func (r *Replica) StopCapturing() { r.undo.StopCapturing() }
