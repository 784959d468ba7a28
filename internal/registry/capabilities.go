package registry

import (
	"context"

	"github.com/packden/packden/internal/assetgraph"
	"github.com/packden/packden/internal/bundlegraph"
	"github.com/packden/packden/internal/resolver"
	"github.com/packden/packden/internal/transformer"
)

// Resolver and Transformer are re-exported here so modules only import
// the registry package.
type (
	Resolver    = resolver.Resolver
	Transformer = transformer.Transformer
)

// BundleOptions is passed to the bundler capability.
type BundleOptions struct {
	RootDir string
}

// Bundler partitions a completed asset graph into bundles, populating the
// given bundle graph.
type Bundler interface {
	Bundle(ctx context.Context, assets *assetgraph.Graph, bundles *bundlegraph.Graph, opts BundleOptions) error
}

// NamerOptions is passed to each namer capability.
type NamerOptions struct {
	RootDir string
	DistDir string
}

// Namer proposes a file path for a bundle. Returning an empty path with a
// nil error passes the bundle on to the next namer in declaration order.
type Namer interface {
	Name(ctx context.Context, b *bundlegraph.Bundle, opts NamerOptions) (string, error)
}

// RuntimeAPI is the composer callback surface a runtime may use while it
// is being applied.
type RuntimeAPI interface {
	// AddRuntimeAsset builds the given synthetic request in a nested,
	// private build, dedups the resulting sub-graph against the bundle's
	// ancestors, merges the rest into the bundle, and connects it from
	// injectionNodeID. It returns the entry asset so the runtime can
	// reference it.
	AddRuntimeAsset(ctx context.Context, bundles *bundlegraph.Graph, b *bundlegraph.Bundle, injectionNodeID string, req *assetgraph.Request) (*assetgraph.Asset, error)
}

// RuntimeOptions is passed to each runtime capability.
type RuntimeOptions struct {
	Bundles *bundlegraph.Graph
	API     RuntimeAPI
	RootDir string
}

// Runtime augments a bundle with runtime-only assets (loader preludes,
// manifests) after naming has run.
type Runtime interface {
	Apply(ctx context.Context, b *bundlegraph.Bundle, opts RuntimeOptions) error
}
