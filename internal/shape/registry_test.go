package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkdrift/inkdrift/internal/geom"
)

func rect(id string) Shape {
	return NewBox(id, KindRect, "red", geom.Box{X2: 10, Y2: 10}, 0)
}

func ids(r *Registry) []string {
	var out []string
	for _, s := range r.All() {
		out = append(out, s.ID())
	}
	return out
}

func TestRegistryOrderAndIndex(t *testing.T) {
	r := NewRegistry()
	r.Push(rect("a"), rect("c"))
	r.Insert(1, rect("b"))

	assert.Equal(t, []string{"a", "b", "c"}, ids(r))
	assert.Equal(t, 1, r.IndexOf("b"))
	assert.Equal(t, -1, r.IndexOf("zz"))

	r.Delete(0, 2)
	assert.Equal(t, []string{"c"}, ids(r))
	_, ok := r.Get("a")
	assert.False(t, ok)
	_, ok = r.Get("c")
	assert.True(t, ok)
}

func TestRegistryApplyDelta(t *testing.T) {
	r := NewRegistry()
	r.Reset([]Shape{rect("a"), rect("b"), rect("c")})

	replacement := NewBox("b", KindRect, "blue", geom.Box{X2: 5, Y2: 5}, 0)
	r.ApplyDelta([]Splice{
		{Retain: 1, Delete: 1},
		{Insert: []Shape{replacement}},
		{Retain: 1, Insert: []Shape{rect("d")}},
	})

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(r))
	got, ok := r.Get("b")
	require.True(t, ok)
	assert.Equal(t, "blue", got.Color())
	assert.Equal(t, 4, r.Len())
}

func TestRegistryDeleteKeepsNewerSameID(t *testing.T) {
	r := NewRegistry()
	old := rect("a")
	r.Push(old)
	r.Push(NewBox("a", KindRect, "blue", geom.Box{X2: 1, Y2: 1}, 0))
	r.Delete(0, 1)

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "blue", got.Color())
	assert.Equal(t, 1, r.Len())
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Push(rect("a"), rect("b"))
	got := r.Lookup([]string{"b", "missing", "a"})
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID())
	assert.Equal(t, "a", got[1].ID())
}
