// Package composer turns a completed asset graph into a bundle graph: it
// runs the pluggable bundler, then naming, then runtime injection, and
// spawns nested build engines to materialize runtime-only sub-graphs.
package composer

import (
	"context"
	"fmt"

	"github.com/packden/packden/internal/assetgraph"
	"github.com/packden/packden/internal/bundlegraph"
	"github.com/packden/packden/internal/ctxlog"
	"github.com/packden/packden/internal/engine"
	"github.com/packden/packden/internal/queue"
	"github.com/packden/packden/internal/registry"
)

// UnnamedBundleError reports a bundle no configured namer produced a path
// for. Every bundle must end up named, so this is fatal to the build.
type UnnamedBundleError struct {
	BundleID string
}

func (e *UnnamedBundleError) Error() string {
	return fmt.Sprintf("no namer produced a name for bundle %s", e.BundleID)
}

// Options configures a composer.
type Options struct {
	Registry *registry.Registry
	RootDir  string
	DistDir  string
	// Concurrency caps parallel naming tasks and nested builds.
	Concurrency int
	// Progress, when set, is notified once at the start of bundling.
	Progress func(stage string)
}

// Composer owns the bundle graph it produces for the duration of one
// Bundle call. Nested engines it spawns never see that graph.
type Composer struct {
	reg         *registry.Registry
	rootDir     string
	distDir     string
	concurrency int
	progress    func(string)
}

// New validates the registry and creates a composer.
func New(opts Options) (*Composer, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("composer: a registry is required")
	}
	if err := opts.Registry.Validate(); err != nil {
		return nil, err
	}
	return &Composer{
		reg:         opts.Registry,
		rootDir:     opts.RootDir,
		distDir:     opts.DistDir,
		concurrency: opts.Concurrency,
		progress:    opts.Progress,
	}, nil
}

// Bundle partitions the asset graph into bundles, names every bundle, and
// applies the configured runtimes.
func (c *Composer) Bundle(ctx context.Context, assets *assetgraph.Graph) (*bundlegraph.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	if c.progress != nil {
		c.progress("bundling")
	}
	logger.Debug("Bundling starting.")

	bundles := bundlegraph.NewGraph()
	if err := c.reg.Bundler().Bundle(ctx, assets, bundles, registry.BundleOptions{RootDir: c.rootDir}); err != nil {
		return nil, fmt.Errorf("bundler: %w", err)
	}
	logger.Debug("Bundler produced bundles.", "count", len(bundles.Bundles()))

	if err := c.nameBundles(ctx, bundles); err != nil {
		return nil, err
	}
	if err := c.applyRuntimes(ctx, bundles); err != nil {
		return nil, err
	}
	return bundles, nil
}

// nameBundles assigns a file path to every bundle. Bundles are named
// concurrently; within one bundle the namers run in declared order and
// the first non-empty path wins.
func (c *Composer) nameBundles(ctx context.Context, bundles *bundlegraph.Graph) error {
	namers := c.reg.Namers()
	opts := registry.NamerOptions{RootDir: c.rootDir, DistDir: c.distDir}

	q := queue.New(c.concurrency)
	for _, b := range bundles.Bundles() {
		b := b
		q.Add(func(ctx context.Context) error {
			for _, n := range namers {
				name, err := n.Name(ctx, b, opts)
				if err != nil {
					return fmt.Errorf("namer: %w", err)
				}
				if name != "" {
					b.Name = name
					ctxlog.FromContext(ctx).Debug("Bundle named.", "bundle", b.ID, "name", name)
					return nil
				}
			}
			return &UnnamedBundleError{BundleID: b.ID}
		})
	}
	return q.Run(ctx)
}

// applyRuntimes runs every configured runtime over every bundle, in
// traversal order, sequentially. Runtimes call back into AddRuntimeAsset.
func (c *Composer) applyRuntimes(ctx context.Context, bundles *bundlegraph.Graph) error {
	runtimes := c.reg.Runtimes()
	return bundles.Traverse(func(b *bundlegraph.Bundle) error {
		for _, rt := range runtimes {
			opts := registry.RuntimeOptions{Bundles: bundles, API: c, RootDir: c.rootDir}
			if err := rt.Apply(ctx, b, opts); err != nil {
				return fmt.Errorf("runtime: %w", err)
			}
		}
		return nil
	})
}

// AddRuntimeAsset materializes a synthetic entry in a nested, private
// build, removes every asset already present in an ancestor bundle (a
// module loaded by an ancestor need not be duplicated), merges what is
// left into the bundle's asset graph, and connects it from the injection
// node. The entry asset is returned for the runtime to reference.
func (c *Composer) AddRuntimeAsset(ctx context.Context, bundles *bundlegraph.Graph, b *bundlegraph.Bundle, injectionNodeID string, req *assetgraph.Request) (*assetgraph.Asset, error) {
	nested, err := engine.New(engine.Options{
		EntryRequests: []*assetgraph.Request{req},
		Env:           b.Env,
		Resolver:      c.reg.Resolver(),
		Transformer:   c.reg.Transformer(),
		Concurrency:   c.concurrency,
	})
	if err != nil {
		return nil, err
	}
	defer nested.Close()

	private, err := nested.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("runtime asset build: %w", err)
	}

	entryAsset, ok := private.RequestAsset(req.ID)
	if !ok {
		return nil, fmt.Errorf("runtime asset build: request %s produced no asset", req.ID)
	}

	sub := private.SubGraph(entryAsset.ID)
	for _, ancestor := range bundles.Ancestors(b.ID) {
		for _, n := range sub.Nodes() {
			// The entry asset itself is always injected, even when an
			// ancestor carries it: the injection edge must have a target.
			if n.Kind != assetgraph.KindAsset || n.ID == entryAsset.ID {
				continue
			}
			if ancestor.Assets.HasAsset(n.ID) {
				sub.RemoveAsset(n.ID)
			}
		}
	}

	b.Assets.Merge(sub)
	if err := b.Assets.AddEdge(injectionNodeID, entryAsset.ID); err != nil {
		return nil, err
	}

	merged, ok := b.Assets.Node(entryAsset.ID)
	if !ok {
		return nil, fmt.Errorf("runtime asset build: entry asset lost in merge")
	}
	return merged.Asset, nil
}
