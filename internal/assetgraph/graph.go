// Package assetgraph holds the mutable dependency graph a build converges
// on: dependency, transform-request and asset nodes, the edges between
// them, and the two derived index sets (invalid and incomplete nodes) the
// build engine steers by.
package assetgraph

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Graph is the dependency graph for one build. All operations are
// concurrency-safe; mutators leave the invalid/incomplete index sets
// consistent before returning.
type Graph struct {
	mu sync.RWMutex

	nodes map[string]*Node
	// out and in hold directed edges keyed by node ID. An edge always runs
	// from a node to the node that satisfies it: dependency -> request,
	// request -> asset, asset -> dependency.
	out map[string]map[string]struct{}
	in  map[string]map[string]struct{}

	// byFile maps a file path to every node ID that reads it as a build
	// input, so a file change can be routed to the requests that must rerun.
	byFile map[string]map[string]struct{}

	invalid    map[string]struct{}
	incomplete map[string]struct{}

	// entries are the node IDs seeded by Initialize / AddEntryRequest, in
	// insertion order.
	entries []string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[string]*Node),
		out:        make(map[string]map[string]struct{}),
		in:         make(map[string]map[string]struct{}),
		byFile:     make(map[string]map[string]struct{}),
		invalid:    make(map[string]struct{}),
		incomplete: make(map[string]struct{}),
	}
}

// Initialize seeds one dependency node per entry specifier. Entry
// dependencies have no source path and are never optional.
func (g *Graph) Initialize(env Environment, entries ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, specifier := range entries {
		dep := &Dependency{
			ID:        DependencyID("", specifier, env),
			Specifier: specifier,
			Env:       env,
		}
		if _, exists := g.nodes[dep.ID]; exists {
			continue
		}
		g.addNode(&Node{ID: dep.ID, Kind: KindDependency, Dependency: dep})
		g.incomplete[dep.ID] = struct{}{}
		g.entries = append(g.entries, dep.ID)
	}
}

// AddEntryRequest seeds a synthetic transform request as a build entry.
// Used by runtime injection, where the entry is generated code rather than
// a dependency specifier.
func (g *Graph) AddEntryRequest(req *Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if req.ID == "" {
		req.ID = RequestID(req.FilePath, req.Env)
	}
	if _, exists := g.nodes[req.ID]; exists {
		return
	}
	g.addNode(&Node{ID: req.ID, Kind: KindRequest, Request: req})
	g.registerFile(req.FilePath, req.ID)
	g.incomplete[req.ID] = struct{}{}
	g.entries = append(g.entries, req.ID)
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Entries returns the seeded entry nodes in insertion order.
func (g *Graph) Entries() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.entries))
	for _, id := range g.entries {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Nodes returns every node, sorted by ID for deterministic iteration.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HasFile reports whether any node reads the given file as a build input.
func (g *Graph) HasFile(path string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byFile[path]) > 0
}

// InvalidNodes returns the IDs of nodes flagged for mandatory
// re-processing, sorted for deterministic scheduling.
func (g *Graph) InvalidNodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedIDs(g.invalid)
}

// IncompleteNodes returns the IDs of nodes missing a required child,
// sorted for deterministic scheduling.
func (g *Graph) IncompleteNodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedIDs(g.incomplete)
}

// Complete reports whether the graph has no incomplete nodes left. This is
// the build engine's termination condition.
func (g *Graph) Complete() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.incomplete) == 0
}

// InvalidateFile flags the transform requests that read the given file for
// re-processing. Asset nodes route to their owning request, so the rebuild
// always re-enters at the transform boundary. Reports whether any node was
// flagged.
func (g *Graph) InvalidateFile(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	flagged := false
	for id := range g.byFile[path] {
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		switch n.Kind {
		case KindRequest:
			g.invalid[id] = struct{}{}
			flagged = true
		case KindAsset:
			// The owning request is the asset's sole in-edge.
			for owner := range g.in[id] {
				if o, ok := g.nodes[owner]; ok && o.Kind == KindRequest {
					g.invalid[owner] = struct{}{}
					flagged = true
				}
			}
		}
	}
	return flagged
}

// ResolveDependency attaches a transform request for the resolved file path
// as the child of dep, reusing an existing request node when one exists for
// the same file and environment. It reports whether the request was newly
// created. The dependency stops being incomplete either way.
func (g *Graph) ResolveDependency(depID, filePath string) (*Request, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	depNode, ok := g.nodes[depID]
	if !ok || depNode.Kind != KindDependency {
		return nil, false, fmt.Errorf("resolve dependency: no dependency node %q", depID)
	}

	reqID := RequestID(filePath, depNode.Dependency.Env)
	created := false
	reqNode, ok := g.nodes[reqID]
	if !ok {
		req := &Request{ID: reqID, FilePath: filePath, Env: depNode.Dependency.Env}
		reqNode = &Node{ID: reqID, Kind: KindRequest, Request: req}
		g.addNode(reqNode)
		g.registerFile(filePath, reqID)
		g.incomplete[reqID] = struct{}{}
		created = true
	}

	g.addEdge(depID, reqID)
	delete(g.incomplete, depID)
	return reqNode.Request, created, nil
}

// SkipDependency marks an optional dependency as resolved-to-nothing. The
// graph is otherwise unchanged; the node just stops being incomplete.
func (g *Graph) SkipDependency(depID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.incomplete, depID)
}

// ResolveRequest attaches the assets produced by a transform (and the
// dependencies they discovered) under the request node, replacing whatever
// the previous transform produced. Dependencies that survive unchanged keep
// their existing subtree. It returns the build-input files added and
// removed by this transform and the newly discovered dependencies.
func (g *Graph) ResolveRequest(req *Request, res *TransformResult, duration time.Duration) (added, removed []string, newDeps []*Dependency, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	reqNode, ok := g.nodes[req.ID]
	if !ok || reqNode.Kind != KindRequest {
		return nil, nil, nil, fmt.Errorf("resolve request: no request node %q", req.ID)
	}

	// Previous assets of this request, replaced wholesale below.
	oldAssets := sortedIDs(g.out[req.ID])

	keptDeps := make(map[string]struct{})
	for i, ga := range res.Assets {
		env := req.Env
		asset := &Asset{
			ID:       AssetID(req.FilePath, env, i),
			FilePath: req.FilePath,
			Env:      env,
			Code:     ga.Code,
			Meta:     ga.Meta,
			Duration: duration,
		}
		assetNode, exists := g.nodes[asset.ID]
		if exists && assetNode.Kind == KindAsset {
			*assetNode.Asset = *asset
		} else {
			assetNode = &Node{ID: asset.ID, Kind: KindAsset, Asset: asset}
			g.addNode(assetNode)
			g.registerFile(asset.FilePath, asset.ID)
		}
		g.addEdge(req.ID, asset.ID)
		delete(g.invalid, asset.ID)

		for _, dd := range ga.Deps {
			depEnv := env
			if dd.Env != nil {
				depEnv = *dd.Env
			}
			dep := &Dependency{
				ID:         DependencyID(req.FilePath, dd.Specifier, depEnv),
				Specifier:  dd.Specifier,
				SourcePath: req.FilePath,
				Env:        depEnv,
				Optional:   dd.Optional,
			}
			keptDeps[dep.ID] = struct{}{}
			if _, exists := g.nodes[dep.ID]; !exists {
				g.addNode(&Node{ID: dep.ID, Kind: KindDependency, Dependency: dep})
				g.incomplete[dep.ID] = struct{}{}
				newDeps = append(newDeps, dep)
			}
			g.addEdge(asset.ID, dep.ID)
		}
	}

	// Drop assets the new transform no longer produces, and dependency
	// children that vanished from kept assets.
	for _, oldID := range oldAssets {
		n, ok := g.nodes[oldID]
		if !ok || n.Kind != KindAsset {
			continue
		}
		idx := -1
		for i := range res.Assets {
			if AssetID(req.FilePath, req.Env, i) == oldID {
				idx = i
				break
			}
		}
		if idx == -1 {
			g.removeNode(oldID)
			continue
		}
		for _, childID := range sortedIDs(g.out[oldID]) {
			if _, kept := keptDeps[childID]; !kept {
				g.removeNode(childID)
			}
		}
	}

	for _, f := range res.AddedFiles {
		g.registerFile(f, req.ID)
	}
	for _, f := range res.RemovedFiles {
		g.unregisterFile(f, req.ID)
	}

	delete(g.invalid, req.ID)
	delete(g.incomplete, req.ID)
	return res.AddedFiles, res.RemovedFiles, newDeps, nil
}

// AddEdge inserts a directed edge between two existing nodes.
func (g *Graph) AddEdge(fromID, toID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[fromID]; !ok {
		return fmt.Errorf("add edge: source node not found: %s", fromID)
	}
	if _, ok := g.nodes[toID]; !ok {
		return fmt.Errorf("add edge: destination node not found: %s", toID)
	}
	g.addEdge(fromID, toID)
	return nil
}

// Children returns the nodes satisfying the given node, sorted by ID.
func (g *Graph) Children(id string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.out[id]))
	for _, childID := range sortedIDs(g.out[id]) {
		if n, ok := g.nodes[childID]; ok {
			out = append(out, n)
		}
	}
	return out
}

// RequestAsset returns the first asset produced by the given request node.
func (g *Graph) RequestAsset(reqID string) (*Asset, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, childID := range sortedIDs(g.out[reqID]) {
		if n, ok := g.nodes[childID]; ok && n.Kind == KindAsset {
			return n.Asset, true
		}
	}
	return nil, false
}

// addNode, addEdge, registerFile and friends assume g.mu is held.

func (g *Graph) addNode(n *Node) {
	g.nodes[n.ID] = n
	if g.out[n.ID] == nil {
		g.out[n.ID] = make(map[string]struct{})
	}
	if g.in[n.ID] == nil {
		g.in[n.ID] = make(map[string]struct{})
	}
}

func (g *Graph) addEdge(fromID, toID string) {
	g.out[fromID][toID] = struct{}{}
	g.in[toID][fromID] = struct{}{}
}

func (g *Graph) registerFile(path, nodeID string) {
	if path == "" {
		return
	}
	if g.byFile[path] == nil {
		g.byFile[path] = make(map[string]struct{})
	}
	g.byFile[path][nodeID] = struct{}{}
}

func (g *Graph) unregisterFile(path, nodeID string) {
	if set, ok := g.byFile[path]; ok {
		delete(set, nodeID)
		if len(set) == 0 {
			delete(g.byFile, path)
		}
	}
}

// removeNode deletes a node together with every edge it participates in
// and its file registrations.
func (g *Graph) removeNode(id string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for to := range g.out[id] {
		delete(g.in[to], id)
	}
	for from := range g.in[id] {
		delete(g.out[from], id)
	}
	delete(g.out, id)
	delete(g.in, id)
	delete(g.invalid, id)
	delete(g.incomplete, id)
	switch n.Kind {
	case KindRequest:
		g.unregisterFile(n.Request.FilePath, id)
	case KindAsset:
		g.unregisterFile(n.Asset.FilePath, id)
	}
	delete(g.nodes, id)
}

func sortedIDs(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
