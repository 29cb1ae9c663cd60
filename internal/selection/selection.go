// Package selection tracks the shapes selected by the local user and the
// drag rectangle used for area selection.
package selection

import (
	"slices"
	"sync"

	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
)

// DragRect is an area selection in progress, in world space.
type DragRect struct {
	Start   geom.Point
	Current geom.Point
}

func (d DragRect) Box() geom.Box {
	return geom.Box{X1: d.Start.X, Y1: d.Start.Y, X2: d.Current.X, Y2: d.Current.Y}.Normalize()
}

// Selection is an ordered set of shape IDs.
type Selection struct {
	mu        sync.Mutex
	ids       []string
	drag      *DragRect
	listeners []func()
}

func New() *Selection {
	return &Selection{}
}

// OnChange registers fn to run after the IDs or the drag rectangle change.
func (s *Selection) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Selection) notify() {
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// mutate runs fn under the lock and notifies when it reports a change.
func (s *Selection) mutate(fn func() bool) {
	s.mu.Lock()
	changed := fn()
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// IDs returns a copy of the selected IDs in selection order.
func (s *Selection) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids)
}

func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Selection) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.ids, id)
}

// Select adds id. Without additive the selection becomes just id, unless id
// is already selected, which keeps a multi-selection intact for dragging.
func (s *Selection) Select(id string, additive bool) {
	s.mutate(func() bool {
		if slices.Contains(s.ids, id) {
			return false
		}
		if additive {
			s.ids = append(s.ids, id)
		} else {
			s.ids = []string{id}
		}
		return true
	})
}

func (s *Selection) Deselect(id string) {
	s.mutate(func() bool {
		i := slices.Index(s.ids, id)
		if i < 0 {
			return false
		}
		s.ids = slices.Delete(s.ids, i, i+1)
		return true
	})
}

func (s *Selection) Toggle(id string) {
	if s.IsSelected(id) {
		s.Deselect(id)
		return
	}
	s.Select(id, true)
}

func (s *Selection) Clear() {
	s.mutate(func() bool {
		if len(s.ids) == 0 {
			return false
		}
		s.ids = nil
		return true
	})
}

// Set replaces the selection.
func (s *Selection) Set(ids []string) {
	s.mutate(func() bool {
		if slices.Equal(s.ids, ids) {
			return false
		}
		s.ids = slices.Clone(ids)
		return true
	})
}

// Retain drops every selected ID for which keep returns false, such as shapes
// removed by a peer.
func (s *Selection) Retain(keep func(id string) bool) {
	s.mutate(func() bool {
		n := len(s.ids)
		s.ids = slices.DeleteFunc(s.ids, func(id string) bool { return !keep(id) })
		return len(s.ids) != n
	})
}

// Click handles a click on id: shift toggles, otherwise select.
func (s *Selection) Click(id string, shift bool) {
	if shift {
		s.Toggle(id)
		return
	}
	s.Select(id, false)
}

// SelectByArea selects every shape whose bounds intersect area, skipping
// shapes locked by other peers.
func (s *Selection) SelectByArea(area geom.Box, shapes []shape.Shape, locked map[string]bool) {
	var ids []string
	for _, sh := range shapes {
		if locked[sh.ID()] {
			continue
		}
		if sh.Bounds().Intersects(area) {
			ids = append(ids, sh.ID())
		}
	}
	s.mutate(func() bool {
		s.ids = ids
		return true
	})
}

func (s *Selection) BeginDrag(p geom.Point) {
	s.mutate(func() bool {
		s.drag = &DragRect{Start: p, Current: p}
		return true
	})
}

func (s *Selection) UpdateDrag(p geom.Point) {
	s.mutate(func() bool {
		if s.drag == nil {
			return false
		}
		s.drag.Current = p
		return true
	})
}

// EndDrag selects by the drag rectangle, if one is active, and clears it.
func (s *Selection) EndDrag(shapes []shape.Shape, locked map[string]bool) {
	s.mu.Lock()
	drag := s.drag
	s.drag = nil
	s.mu.Unlock()
	if drag == nil {
		return
	}
	s.SelectByArea(drag.Box(), shapes, locked)
}

// Dragging reports whether an area selection is in progress.
func (s *Selection) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag != nil
}

// Drag returns the active drag rectangle.
func (s *Selection) Drag() (DragRect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return DragRect{}, false
	}
	return *s.drag, true
}

// Reset clears the IDs and any drag in progress.
func (s *Selection) Reset() {
	s.mutate(func() bool {
		changed := len(s.ids) > 0 || s.drag != nil
		s.ids = nil
		s.drag = nil
		return changed
	})
}
