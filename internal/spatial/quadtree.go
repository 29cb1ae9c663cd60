// Package spatial indexes shape bounds for point and area queries.
package spatial

import (
	"slices"

	"github.com/inkdrift/inkdrift/internal/geom"
)

const (
	// WorldExtent is the half-size of the indexed square around the origin.
	// Items outside it stay in the root node and are returned by every query.
	WorldExtent = 5000.0
	BucketSize  = 10
	MaxDepth    = 5
)

type entry[T any] struct {
	box geom.Box
	val T
	seq int
}

type node[T any] struct {
	bounds   geom.Box
	depth    int
	entries  []*entry[T]
	children []*node[T]
}

// Quadtree holds boxes in recursively split quadrants. Boxes that straddle a
// split are stored in every quadrant they touch. There is no removal: callers
// Clear and re-insert.
type Quadtree[T any] struct {
	bounds   geom.Box
	bucket   int
	maxDepth int
	root     *node[T]
	size     int
}

func NewQuadtree[T any](bounds geom.Box, bucket, maxDepth int) *Quadtree[T] {
	q := &Quadtree[T]{bounds: bounds.Normalize(), bucket: bucket, maxDepth: maxDepth}
	q.Clear()
	return q
}

// NewWorldQuadtree covers ±WorldExtent with the default bucket and depth.
func NewWorldQuadtree[T any]() *Quadtree[T] {
	return NewQuadtree[T](geom.Box{X1: -WorldExtent, Y1: -WorldExtent, X2: WorldExtent, Y2: WorldExtent}, BucketSize, MaxDepth)
}

func (q *Quadtree[T]) Clear() {
	q.root = &node[T]{bounds: q.bounds}
	q.size = 0
}

func (q *Quadtree[T]) Len() int { return q.size }

func (q *Quadtree[T]) Insert(box geom.Box, v T) {
	e := &entry[T]{box: box.Normalize(), val: v, seq: q.size}
	q.size++
	q.insert(q.root, e)
}

func (q *Quadtree[T]) insert(n *node[T], e *entry[T]) {
	if n.children != nil {
		if kids := n.overlapping(e.box); len(kids) > 0 {
			for _, c := range kids {
				q.insert(c, e)
			}
			return
		}
	}
	n.entries = append(n.entries, e)
	if n.children == nil && len(n.entries) > q.bucket && n.depth < q.maxDepth {
		q.split(n)
	}
}

func (q *Quadtree[T]) split(n *node[T]) {
	b := n.bounds
	mx := (b.X1 + b.X2) / 2
	my := (b.Y1 + b.Y2) / 2
	n.children = []*node[T]{
		{bounds: geom.Box{X1: b.X1, Y1: b.Y1, X2: mx, Y2: my}, depth: n.depth + 1},
		{bounds: geom.Box{X1: mx, Y1: b.Y1, X2: b.X2, Y2: my}, depth: n.depth + 1},
		{bounds: geom.Box{X1: b.X1, Y1: my, X2: mx, Y2: b.Y2}, depth: n.depth + 1},
		{bounds: geom.Box{X1: mx, Y1: my, X2: b.X2, Y2: b.Y2}, depth: n.depth + 1},
	}
	entries := n.entries
	n.entries = nil
	for _, e := range entries {
		q.insert(n, e)
	}
}

func (n *node[T]) overlapping(box geom.Box) []*node[T] {
	var out []*node[T]
	for _, c := range n.children {
		if c.bounds.Intersects(box) {
			out = append(out, c)
		}
	}
	return out
}

// Retrieve returns every value whose box intersects box, in insertion order.
func (q *Quadtree[T]) Retrieve(box geom.Box) []T {
	box = box.Normalize()
	seen := make(map[int]*entry[T])
	q.retrieve(q.root, box, seen)

	found := make([]*entry[T], 0, len(seen))
	for _, e := range seen {
		found = append(found, e)
	}
	slices.SortFunc(found, func(a, b *entry[T]) int { return a.seq - b.seq })

	out := make([]T, len(found))
	for i, e := range found {
		out[i] = e.val
	}
	return out
}

func (q *Quadtree[T]) retrieve(n *node[T], box geom.Box, seen map[int]*entry[T]) {
	for _, e := range n.entries {
		if e.box.Intersects(box) {
			seen[e.seq] = e
		}
	}
	for _, c := range n.overlapping(box) {
		q.retrieve(c, box, seen)
	}
}
