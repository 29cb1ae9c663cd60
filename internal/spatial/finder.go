package spatial

import (
	"math"
	"sync"

	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
)

// Neighbourhood is the half-size of the box queried around a point.
const Neighbourhood = 10.0

// Picker resolves a point against the rendered scene when the index finds
// nothing. The renderer implements it with a ray pick.
type Picker interface {
	Pick(world geom.Point) (id string, ok bool)
}

// Finder answers hit queries over the current shape set.
type Finder struct {
	mu     sync.RWMutex
	tree   *Quadtree[shape.Shape]
	byID   map[string]shape.Shape
	picker Picker
}

// NewFinder returns an empty finder. picker may be nil.
func NewFinder(picker Picker) *Finder {
	return &Finder{
		tree:   NewWorldQuadtree[shape.Shape](),
		byID:   make(map[string]shape.Shape),
		picker: picker,
	}
}

// Rebuild clears the index and inserts shapes in z-order.
func (f *Finder) Rebuild(shapes []shape.Shape) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tree.Clear()
	clear(f.byID)
	for _, s := range shapes {
		f.tree.Insert(s.Bounds().Expand(rotatedPad(s)), s)
		f.byID[s.ID()] = s
	}
}

// rotatedPad grows the stored bounds of a rotated box to cover its corners.
func rotatedPad(s shape.Shape) float64 {
	if s.Rotation() == 0 {
		return 0
	}
	b := s.Bounds()
	half := math.Hypot(b.Width(), b.Height()) / 2
	return half - math.Min(b.Width(), b.Height())/2
}

// FindAt returns the shape under (x, y). The closest hit wins and ties go to
// the topmost shape. Without an indexed hit the picker is consulted.
func (f *Finder) FindAt(x, y float64) (shape.Shape, bool) {
	p := geom.Point{X: x, Y: y}
	f.mu.RLock()
	candidates := f.tree.Retrieve(geom.BoxAround(p, 2*Neighbourhood, 2*Neighbourhood))
	picker := f.picker
	f.mu.RUnlock()

	var (
		best     shape.Shape
		bestDist = math.Inf(1)
	)
	for i := len(candidates) - 1; i >= 0; i-- {
		s := candidates[i]
		if d, ok := s.HitTest(p); ok && d < bestDist {
			best, bestDist = s, d
		}
	}
	if best != nil {
		return best, true
	}

	if picker == nil {
		return nil, false
	}
	id, ok := picker.Pick(p)
	if !ok {
		return nil, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.byID[id]
	return s, ok
}

// FindInBox returns every shape whose bounds intersect box, in z-order.
func (f *Finder) FindInBox(box geom.Box) []shape.Shape {
	f.mu.RLock()
	defer f.mu.RUnlock()
	candidates := f.tree.Retrieve(box)
	out := candidates[:0]
	for _, s := range candidates {
		if s.Bounds().Intersects(box) {
			out = append(out, s)
		}
	}
	return out
}
