package spatial

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
)

func TestQuadtreeSplitsAndRetrieves(t *testing.T) {
	q := NewWorldQuadtree[int]()
	for i := 0; i < 200; i++ {
		x := float64(i*40 - 4000)
		q.Insert(geom.Box{X1: x, Y1: x, X2: x + 5, Y2: x + 5}, i)
	}
	assert.Equal(t, 200, q.Len())
	require.NotNil(t, q.root.children, "root splits past the bucket size")

	got := q.Retrieve(geom.Box{X1: -4000, Y1: -4000, X2: -3915, Y2: -3915})
	assert.Equal(t, []int{0, 1, 2}, got)

	q.Clear()
	assert.Empty(t, q.Retrieve(geom.Box{X1: -5000, Y1: -5000, X2: 5000, Y2: 5000}))
}

func TestQuadtreeStraddlingAndOutside(t *testing.T) {
	q := NewWorldQuadtree[string]()
	for i := 0; i < 20; i++ {
		q.Insert(geom.Box{X1: float64(i), Y1: 100, X2: float64(i) + 1, Y2: 101}, fmt.Sprint(i))
	}
	q.Insert(geom.Box{X1: -10, Y1: -10, X2: 10, Y2: 10}, "centre")
	q.Insert(geom.Box{X1: 9000, Y1: 9000, X2: 9010, Y2: 9010}, "far")

	assert.Equal(t, []string{"centre"}, q.Retrieve(geom.Box{X1: -5, Y1: -5, X2: -4, Y2: -4}))
	assert.Equal(t, []string{"centre"}, q.Retrieve(geom.Box{X1: 4, Y1: 4, X2: 5, Y2: 5}), "stored once per quadrant, returned once")
	assert.Equal(t, []string{"far"}, q.Retrieve(geom.Box{X1: 9005, Y1: 9005, X2: 9006, Y2: 9006}))
}

func rect(id string, x1, y1, x2, y2 float64) shape.Shape {
	return shape.NewBox(id, shape.KindRect, "red", geom.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}, 0)
}

func line(id string, x1, y1, x2, y2 float64) shape.Shape {
	return shape.NewStroke(id, shape.KindLine, "red", geom.Point{X: x1, Y: y1}, geom.Point{X: x2, Y: y2})
}

type fakePicker struct{ id string }

func (p fakePicker) Pick(geom.Point) (string, bool) { return p.id, p.id != "" }

func TestFindAt(t *testing.T) {
	f := NewFinder(nil)
	f.Rebuild([]shape.Shape{
		rect("bottom", 0, 0, 100, 100),
		rect("top", 50, 50, 150, 150),
		line("near", 200, 0, 200, 100),
		line("far", 206, 0, 206, 100),
		shape.NewPath("pen", "red", []geom.Point{{X: 300, Y: 300}, {X: 310, Y: 300}, {X: 320, Y: 300}, {X: 330, Y: 300}}, 5),
	})

	tests := []struct {
		name string
		x, y float64
		want string
	}{
		{"inside bottom only", 10, 10, "bottom"},
		{"overlap goes to topmost", 75, 75, "top"},
		{"nearest stroke wins", 202, 50, "near"},
		{"other stroke closer", 205, 50, "far"},
		{"pencil sample point", 301, 300, "pen"},
		{"pencil last point", 330, 301, "pen"},
		{"empty space", 1000, 1000, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := f.FindAt(tt.x, tt.y)
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, s.ID())
		})
	}
}

func TestFindAtRotatedBox(t *testing.T) {
	f := NewFinder(nil)
	f.Rebuild([]shape.Shape{
		shape.NewBox("r", shape.KindRect, "red", geom.Box{X1: -50, Y1: -5, X2: 50, Y2: 5}, math.Pi/2),
	})
	_, ok := f.FindAt(0, 40)
	assert.True(t, ok, "rotated extent is indexed")
	_, ok = f.FindAt(40, 0)
	assert.False(t, ok)
}

func TestFindAtFallsBackToPicker(t *testing.T) {
	f := NewFinder(fakePicker{id: "glow"})
	f.Rebuild([]shape.Shape{rect("glow", 0, 0, 10, 10)})

	s, ok := f.FindAt(500, 500)
	require.True(t, ok)
	assert.Equal(t, "glow", s.ID())

	f = NewFinder(fakePicker{id: "stale"})
	_, ok = f.FindAt(500, 500)
	assert.False(t, ok, "picked IDs must be indexed")
}

func TestFindInBox(t *testing.T) {
	f := NewFinder(nil)
	f.Rebuild([]shape.Shape{rect("a", 0, 0, 10, 10), rect("b", 100, 100, 110, 110), line("c", 5, 50, 5, 60)})

	var ids []string
	for _, s := range f.FindInBox(geom.Box{X1: -1, Y1: -1, X2: 20, Y2: 55}) {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}
