// Package bundlegraph holds the output-side graph: bundles, the assets
// embedded in each, and the ancestor relation between bundles used for
// cross-bundle deduplication.
package bundlegraph

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/packden/packden/internal/assetgraph"
)

// Bundle is one output artifact: an embedded sub-graph of assets, the
// environment it targets, and (once naming has run) its file path.
type Bundle struct {
	ID   string
	Name string
	Env  assetgraph.Environment

	// EntryAssetIDs are the roots of the bundle's executable content, in
	// load order.
	EntryAssetIDs []string

	// Assets is the bundle-private asset sub-graph. The composer merges
	// runtime-injected sub-graphs into it.
	Assets *assetgraph.Graph

	// ExplicitName lets a bundler pre-assign a name that namers must
	// respect (e.g. from a target's configured output path).
	ExplicitName string
}

// New creates a bundle around the given asset sub-graph and assigns it a
// fresh ID.
func New(env assetgraph.Environment, assets *assetgraph.Graph, entryAssetIDs ...string) *Bundle {
	return &Bundle{
		ID:            uuid.NewString(),
		Env:           env,
		EntryAssetIDs: entryAssetIDs,
		Assets:        assets,
	}
}

// Graph is the set of bundles plus their ancestor relation. An edge from
// parent to child records that the parent is guaranteed to be loaded
// before the child executes.
type Graph struct {
	mu       sync.RWMutex
	bundles  map[string]*Bundle
	order    []string
	children map[string]map[string]struct{}
	parents  map[string]map[string]struct{}
}

// NewGraph creates an empty bundle graph.
func NewGraph() *Graph {
	return &Graph{
		bundles:  make(map[string]*Bundle),
		children: make(map[string]map[string]struct{}),
		parents:  make(map[string]map[string]struct{}),
	}
}

// Add inserts a bundle. Insertion order defines traversal order.
func (g *Graph) Add(b *Bundle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.bundles[b.ID]; exists {
		return
	}
	g.bundles[b.ID] = b
	g.order = append(g.order, b.ID)
	g.children[b.ID] = make(map[string]struct{})
	g.parents[b.ID] = make(map[string]struct{})
}

// AddReference records that child executes with parent already loaded,
// making parent (and its ancestors) eligible for dedup against child.
func (g *Graph) AddReference(parentID, childID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.bundles[parentID]; !ok {
		return fmt.Errorf("bundle graph: parent bundle not found: %s", parentID)
	}
	if _, ok := g.bundles[childID]; !ok {
		return fmt.Errorf("bundle graph: child bundle not found: %s", childID)
	}
	if parentID == childID {
		return fmt.Errorf("bundle graph: bundle cannot reference itself: %s", parentID)
	}
	g.children[parentID][childID] = struct{}{}
	g.parents[childID][parentID] = struct{}{}
	return nil
}

// Bundle returns the bundle with the given ID.
func (g *Graph) Bundle(id string) (*Bundle, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.bundles[id]
	return b, ok
}

// Bundles returns every bundle in traversal (insertion) order.
func (g *Graph) Bundles() []*Bundle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Bundle, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.bundles[id])
	}
	return out
}

// Traverse visits every bundle in traversal order, stopping at the first
// error.
func (g *Graph) Traverse(fn func(*Bundle) error) error {
	for _, b := range g.Bundles() {
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

// Ancestors returns the transitive parents of a bundle: every bundle
// guaranteed to be loaded when it executes, in traversal order.
func (g *Graph) Ancestors(id string) []*Bundle {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]struct{})
	var walk func(id string)
	walk = func(id string) {
		for parent := range g.parents[id] {
			if _, ok := seen[parent]; ok {
				continue
			}
			seen[parent] = struct{}{}
			walk(parent)
		}
	}
	walk(id)

	out := make([]*Bundle, 0, len(seen))
	for _, oid := range g.order {
		if _, ok := seen[oid]; ok {
			out = append(out, g.bundles[oid])
		}
	}
	return out
}
