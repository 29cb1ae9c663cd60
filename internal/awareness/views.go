package awareness

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
)

// Field names published by a session.
const (
	FieldCursor       = "cursor"
	FieldBox          = "box"
	FieldSelectionBox = "selectionBox"
	FieldLockedShapes = "lockedShapes"
	FieldName         = "name"
	FieldColor        = "color"
	FieldDraft        = "draft"
)

// SelectionBox is a drag rectangle in world space.
type SelectionBox struct {
	Start   geom.Point `json:"start"`
	Current geom.Point `json:"current"`
}

// Cursor is a remote pointer with its owner's display name and color.
type Cursor struct {
	Pos   geom.Point
	Name  string
	Color string
}

// DraftState is the preview of an uncommitted shape.
type DraftState struct {
	AuthorID string          `json:"authorId"`
	Shape    json.RawMessage `json:"shape"`
}

// PastelColor returns the display color of peer number n.
func PastelColor(n uint32) string {
	return fmt.Sprintf("hsl(%d, 70%%, 85%%)", uint64(n)*47%360)
}

// ClientNumber maps a client ID to a stable number for PastelColor.
func ClientNumber(clientID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(clientID))
	return h.Sum32()
}

// others calls fn for every online peer except the local one.
func (a *Awareness) others(fn func(id string, s State)) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for id, e := range a.entries {
		if id == a.clientID || e.state == nil {
			continue
		}
		fn(id, e.state)
	}
}

// LockedShapeIDs is the union of every other peer's lockedShapes field. The
// lock is advisory: two peers selecting the same shape within one network
// round trip both pass the check.
func (a *Awareness) LockedShapeIDs() map[string]bool {
	out := make(map[string]bool)
	a.others(func(_ string, s State) {
		var ids []string
		if s.Decode(FieldLockedShapes, &ids) {
			for _, id := range ids {
				out[id] = true
			}
		}
	})
	return out
}

func (a *Awareness) RemoteCursors() map[string]Cursor {
	out := make(map[string]Cursor)
	a.others(func(id string, s State) {
		var c Cursor
		if !s.Decode(FieldCursor, &c.Pos) {
			return
		}
		s.Decode(FieldName, &c.Name)
		s.Decode(FieldColor, &c.Color)
		out[id] = c
	})
	return out
}

// RemoteBoxes returns the bounding boxes other peers are editing.
func (a *Awareness) RemoteBoxes() map[string]shape.RawBox {
	out := make(map[string]shape.RawBox)
	a.others(func(id string, s State) {
		var b shape.RawBox
		if s.Decode(FieldBox, &b) {
			out[id] = b
		}
	})
	return out
}

func (a *Awareness) RemoteSelectionBoxes() map[string]SelectionBox {
	out := make(map[string]SelectionBox)
	a.others(func(id string, s State) {
		var b SelectionBox
		if s.Decode(FieldSelectionBox, &b) {
			out[id] = b
		}
	})
	return out
}

// RemoteDrafts returns the draft previews of other peers. Undecodable drafts
// are skipped.
func (a *Awareness) RemoteDrafts() map[string]shape.Shape {
	out := make(map[string]shape.Shape)
	a.others(func(id string, s State) {
		var d DraftState
		if !s.Decode(FieldDraft, &d) || len(d.Shape) == 0 {
			return
		}
		sh, err := shape.Unmarshal(d.Shape)
		if err != nil {
			return
		}
		out[id] = sh
	})
	return out
}
