package crdt

import (
	"sync"
	"time"
)

// UndoOrigin tags the transactions an UndoManager runs.
const UndoOrigin = "undoManager"

// UndoManager keeps undo and redo stacks for the changes an array receives from
// tracked origins. Remote and untracked changes are never undone, and an undo
// never resurrects a value another peer removed.
type UndoManager struct {
	doc            *Doc
	arr            *Array
	tracked        map[string]struct{}
	captureTimeout time.Duration
	now            func() time.Time

	mu         sync.Mutex
	undo       [][]op
	redo       [][]op
	lastChange time.Time
	running    bool

	// alias maps a removed root to the item that restored it. Only touched
	// while running.
	alias map[ID]ID
}

// NewUndoManager tracks changes to arr made under any of origins. Transactions
// closer together than captureTimeout merge into one undo step.
func NewUndoManager(arr *Array, origins []string, captureTimeout time.Duration) *UndoManager {
	m := &UndoManager{
		doc:            arr.doc,
		arr:            arr,
		tracked:        make(map[string]struct{}, len(origins)),
		captureTimeout: captureTimeout,
		now:            time.Now,
		alias:          make(map[ID]ID),
	}
	for _, o := range origins {
		m.tracked[o] = struct{}{}
	}
	arr.doc.onTransaction(m.afterTransaction)
	return m
}

func (m *UndoManager) afterTransaction(tx *Txn) {
	if !tx.local || tx.origin == UndoOrigin {
		return
	}
	if _, ok := m.tracked[tx.origin]; !ok {
		return
	}
	ops := m.ownOps(tx)
	if len(ops) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if len(m.undo) > 0 && !m.lastChange.IsZero() && now.Sub(m.lastChange) < m.captureTimeout {
		top := len(m.undo) - 1
		m.undo[top] = append(m.undo[top], ops...)
	} else {
		m.undo = append(m.undo, ops)
	}
	m.lastChange = now
	m.redo = nil
}

func (m *UndoManager) ownOps(tx *Txn) []op {
	var out []op
	for _, o := range tx.ops {
		if o.arr == m.arr {
			out = append(out, o)
		}
	}
	return out
}

// StopCapturing makes the next tracked transaction start a new undo step.
func (m *UndoManager) StopCapturing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastChange = time.Time{}
}

func (m *UndoManager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

func (m *UndoManager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Clear drops both stacks.
func (m *UndoManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = nil
	m.redo = nil
	m.lastChange = time.Time{}
}

// Undo reverts the most recent step that still has an effect. It reports
// whether anything changed.
func (m *UndoManager) Undo() bool {
	return m.pop(&m.undo, &m.redo)
}

// Redo reapplies the most recently undone step.
func (m *UndoManager) Redo() bool {
	return m.pop(&m.redo, &m.undo)
}

func (m *UndoManager) pop(from, to *[][]op) bool {
	for {
		m.mu.Lock()
		if m.running || len(*from) == 0 {
			m.mu.Unlock()
			return false
		}
		n := len(*from) - 1
		step := (*from)[n]
		*from = (*from)[:n]
		m.running = true
		m.mu.Unlock()

		var inverse []op
		m.doc.Transact(UndoOrigin, func(tx *Txn) {
			for i := len(step) - 1; i >= 0; i-- {
				m.revert(tx, step[i])
			}
			inverse = m.ownOps(tx)
		})

		m.mu.Lock()
		m.running = false
		m.lastChange = time.Time{}
		if len(inverse) > 0 {
			*to = append(*to, inverse)
			m.mu.Unlock()
			return true
		}
		m.mu.Unlock()
	}
}

// live returns the visible item currently standing for id, following restores
// and replacements.
func (m *UndoManager) live(id ID) (*item, bool) {
	it, ok := m.doc.items[id]
	if !ok {
		return nil, false
	}
	root := it.root()
	for {
		next, ok := m.alias[root.id]
		if !ok {
			break
		}
		r, ok := m.doc.items[next]
		if !ok {
			break
		}
		root = r.root()
	}
	leaf := root.leaf()
	if !m.doc.visible(leaf) {
		return nil, false
	}
	return leaf, true
}

// revert undoes o inside tx. The doc lock is held.
func (m *UndoManager) revert(tx *Txn, o op) {
	switch o.kind {
	case opInsert:
		if it, ok := m.live(o.id); ok {
			m.arr.remove(tx, it)
		}
	case opRemove:
		root, ok := m.doc.items[o.id]
		if !ok {
			return
		}
		// Only restore what this client removed and nobody brought back.
		if _, restored := m.alias[o.id]; restored {
			return
		}
		n := m.arr.insertAfter(tx, root, nil, o.content)
		m.alias[o.id] = n.id
	case opReplace:
		if it, ok := m.live(o.id); ok {
			m.arr.replace(tx, it, o.content)
		}
	}
}
