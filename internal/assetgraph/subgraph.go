package assetgraph

// SubGraph copies the closure reachable from the given node into a fresh
// graph. Node payloads are copied by value so the result never aliases the
// receiver; used when extracting a runtime-injected sub-graph out of a
// nested build.
func (g *Graph) SubGraph(rootID string) *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sub := New()
	var visit func(id string)
	visit = func(id string) {
		if _, seen := sub.nodes[id]; seen {
			return
		}
		n, ok := g.nodes[id]
		if !ok {
			return
		}
		sub.addNode(copyNode(n))
		switch n.Kind {
		case KindRequest:
			sub.registerFile(n.Request.FilePath, id)
		case KindAsset:
			sub.registerFile(n.Asset.FilePath, id)
		}
		if _, inv := g.invalid[id]; inv {
			sub.invalid[id] = struct{}{}
		}
		if _, inc := g.incomplete[id]; inc {
			sub.incomplete[id] = struct{}{}
		}
		for _, childID := range sortedIDs(g.out[id]) {
			visit(childID)
			sub.addEdge(id, childID)
		}
	}
	visit(rootID)
	if _, ok := sub.nodes[rootID]; ok {
		sub.entries = append(sub.entries, rootID)
	}
	return sub
}

// Merge unions another graph's nodes and edges into the receiver. Nodes
// already present keep their local payload; the other graph is left
// untouched and can be discarded afterwards.
func (g *Graph) Merge(other *Graph) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, n := range other.nodes {
		if _, exists := g.nodes[id]; exists {
			continue
		}
		g.addNode(copyNode(n))
		switch n.Kind {
		case KindRequest:
			g.registerFile(n.Request.FilePath, id)
		case KindAsset:
			g.registerFile(n.Asset.FilePath, id)
		}
		if _, inv := other.invalid[id]; inv {
			g.invalid[id] = struct{}{}
		}
		if _, inc := other.incomplete[id]; inc {
			g.incomplete[id] = struct{}{}
		}
	}
	for from, tos := range other.out {
		if _, ok := g.nodes[from]; !ok {
			continue
		}
		for to := range tos {
			if _, ok := g.nodes[to]; ok {
				g.addEdge(from, to)
			}
		}
	}
}

// RemoveAsset deletes an asset node and every edge it owns. Dependency
// children shared with other assets are unaffected; children left without
// any parent stay in the graph but are unreachable and drop out of any
// later SubGraph copy.
func (g *Graph) RemoveAsset(assetID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[assetID]
	if !ok || n.Kind != KindAsset {
		return
	}
	g.removeNode(assetID)
}

// HasAsset reports whether an asset node with the given ID exists.
func (g *Graph) HasAsset(assetID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[assetID]
	return ok && n.Kind == KindAsset
}

// ReachableAssets returns the assets reachable from the given node in
// dependency-first order: an asset's resolved dependencies appear before
// the asset itself. Traversal order is deterministic.
func (g *Graph) ReachableAssets(rootID string) []*Asset {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*Asset
	seen := make(map[string]struct{})
	var visit func(id string)
	visit = func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		n, ok := g.nodes[id]
		if !ok {
			return
		}
		for _, childID := range sortedIDs(g.out[id]) {
			visit(childID)
		}
		if n.Kind == KindAsset {
			out = append(out, n.Asset)
		}
	}
	visit(rootID)
	return out
}

// copyNode duplicates a node and its payload so graphs never share
// mutable state.
func copyNode(n *Node) *Node {
	c := &Node{ID: n.ID, Kind: n.Kind}
	switch n.Kind {
	case KindDependency:
		dep := *n.Dependency
		c.Dependency = &dep
	case KindRequest:
		req := *n.Request
		c.Request = &req
	case KindAsset:
		asset := *n.Asset
		if asset.Meta != nil {
			meta := make(map[string]string, len(asset.Meta))
			for k, v := range asset.Meta {
				meta[k] = v
			}
			asset.Meta = meta
		}
		c.Asset = &asset
	}
	return c
}
