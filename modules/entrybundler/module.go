// Package entrybundler partitions a completed asset graph into one
// bundle per entry: each bundle carries the full asset closure reachable
// from its entry asset.
package entrybundler

import (
	"context"

	"github.com/packden/packden/internal/assetgraph"
	"github.com/packden/packden/internal/bundlegraph"
	"github.com/packden/packden/internal/ctxlog"
	"github.com/packden/packden/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the bundler capability.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBundler(&Bundler{})
}

// Bundler is the per-entry closure implementation of the bundler
// capability.
type Bundler struct{}

// Bundle creates one bundle per entry dependency, in entry order.
// Entries that were skipped during the build (optional misses) produce no
// bundle.
func (b *Bundler) Bundle(ctx context.Context, assets *assetgraph.Graph, bundles *bundlegraph.Graph, opts registry.BundleOptions) error {
	logger := ctxlog.FromContext(ctx)
	for _, entry := range assets.Entries() {
		asset, ok := entryAsset(assets, entry.ID)
		if !ok {
			logger.Debug("Entry has no asset, skipping.", "entry", entry.ID)
			continue
		}
		bundle := bundlegraph.New(asset.Env, assets.SubGraph(asset.ID), asset.ID)
		bundles.Add(bundle)
		logger.Debug("Created bundle.", "bundle", bundle.ID, "entry", asset.FilePath)
	}
	return nil
}

// entryAsset follows an entry dependency through its transform request to
// the asset it produced.
func entryAsset(assets *assetgraph.Graph, entryID string) (*assetgraph.Asset, bool) {
	for _, child := range assets.Children(entryID) {
		if child.Kind != assetgraph.KindRequest {
			continue
		}
		if asset, ok := assets.RequestAsset(child.ID); ok {
			return asset, true
		}
	}
	return nil, false
}
