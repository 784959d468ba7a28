package bundlegraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packden/packden/internal/assetgraph"
)

var browser = assetgraph.Environment{Context: "browser"}

func newBundle() *Bundle {
	return New(browser, assetgraph.New())
}

func TestAddAndTraversalOrder(t *testing.T) {
	g := NewGraph()
	a, b, c := newBundle(), newBundle(), newBundle()
	g.Add(a)
	g.Add(b)
	g.Add(c)
	// Re-adding is a no-op.
	g.Add(a)

	bundles := g.Bundles()
	require.Len(t, bundles, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{bundles[0].ID, bundles[1].ID, bundles[2].ID})

	var visited []string
	require.NoError(t, g.Traverse(func(b *Bundle) error {
		visited = append(visited, b.ID)
		return nil
	}))
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, visited)
}

func TestTraverseStopsOnError(t *testing.T) {
	g := NewGraph()
	g.Add(newBundle())
	g.Add(newBundle())

	boom := errors.New("boom")
	count := 0
	err := g.Traverse(func(*Bundle) error {
		count++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count)
}

func TestAncestors(t *testing.T) {
	g := NewGraph()
	root, mid, leaf, other := newBundle(), newBundle(), newBundle(), newBundle()
	for _, b := range []*Bundle{root, mid, leaf, other} {
		g.Add(b)
	}
	require.NoError(t, g.AddReference(root.ID, mid.ID))
	require.NoError(t, g.AddReference(mid.ID, leaf.ID))

	ancestors := g.Ancestors(leaf.ID)
	require.Len(t, ancestors, 2)
	// Traversal order, transitively.
	assert.Equal(t, root.ID, ancestors[0].ID)
	assert.Equal(t, mid.ID, ancestors[1].ID)

	assert.Empty(t, g.Ancestors(root.ID))
	assert.Empty(t, g.Ancestors(other.ID))
}

func TestAddReferenceErrors(t *testing.T) {
	g := NewGraph()
	a := newBundle()
	g.Add(a)

	assert.ErrorContains(t, g.AddReference(a.ID, "missing"), "child bundle not found")
	assert.ErrorContains(t, g.AddReference("missing", a.ID), "parent bundle not found")
	assert.ErrorContains(t, g.AddReference(a.ID, a.ID), "cannot reference itself")
}
