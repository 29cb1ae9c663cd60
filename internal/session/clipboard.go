package session

import (
	"github.com/inkdrift/inkdrift/internal/shape"
	"github.com/inkdrift/inkdrift/internal/typeid"
)

// Copy stores deep copies of the selected shapes.
func (s *Session) Copy() int {
	sel := s.selected()
	if len(sel) == 0 {
		return 0
	}
	s.clipboard = s.clipboard[:0]
	for _, sh := range sel {
		s.clipboard = append(s.clipboard, sh.Clone())
	}
	return len(s.clipboard)
}

// Paste inserts the clipboard centred on the cursor. Every pasted shape gets a
// fresh identifier and the pasted shapes become the selection.
func (s *Session) Paste() []string {
	if len(s.clipboard) == 0 {
		return nil
	}
	bounds, ok := shape.SelectionBounds(s.clipboard)
	if !ok {
		return nil
	}
	c := bounds.Box().Center()
	dx, dy := s.cursor.X-c.X, s.cursor.Y-c.Y

	pasted := make([]shape.Shape, 0, len(s.clipboard))
	ids := make([]string, 0, len(s.clipboard))
	for _, sh := range s.clipboard {
		cp := shape.WithID(sh, typeid.NewShapeID())
		cp.Translate(dx, dy)
		pasted = append(pasted, cp)
		ids = append(ids, cp.ID())
	}
	if err := s.replica.PushMany(pasted); err != nil {
		s.logger.Error("session: paste", "count", len(pasted), "error", err)
		return nil
	}
	s.replica.StopCapturing()
	s.selection.Set(ids)
	return ids
}
