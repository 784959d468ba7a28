package entrybundler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packden/packden/internal/assetgraph"
	"github.com/packden/packden/internal/bundlegraph"
	"github.com/packden/packden/internal/registry"
)

var browser = assetgraph.Environment{Context: "browser"}

// twoEntryGraph builds an asset graph for two entries that both pull in a
// shared module, plus a skipped optional entry.
func twoEntryGraph(t *testing.T) *assetgraph.Graph {
	t.Helper()
	g := assetgraph.New()
	g.Initialize(browser, "src/a.js", "src/b.js", "src/opt.js")

	resolve := func(entryIdx int, filePath string, deps ...string) {
		entry := g.Entries()[entryIdx]
		req, _, err := g.ResolveDependency(entry.ID, filePath)
		require.NoError(t, err)
		result := &assetgraph.TransformResult{Assets: []assetgraph.GeneratedAsset{{Code: "code"}}}
		for _, d := range deps {
			result.Assets[0].Deps = append(result.Assets[0].Deps, assetgraph.DependencyDescriptor{Specifier: d})
		}
		_, _, newDeps, err := g.ResolveRequest(req, result, 0)
		require.NoError(t, err)
		for _, nd := range newDeps {
			child, _, err := g.ResolveDependency(nd.ID, "/proj/shared.js")
			require.NoError(t, err)
			_, _, _, err = g.ResolveRequest(child, &assetgraph.TransformResult{
				Assets: []assetgraph.GeneratedAsset{{Code: "shared"}},
			}, 0)
			require.NoError(t, err)
		}
	}
	resolve(0, "/proj/a.js", "./shared.js")
	resolve(1, "/proj/b.js", "./shared.js")
	g.SkipDependency(g.Entries()[2].ID)
	require.True(t, g.Complete())
	return g
}

func TestBundlePerEntry(t *testing.T) {
	g := twoEntryGraph(t)
	bundles := bundlegraph.NewGraph()

	require.NoError(t, (&Bundler{}).Bundle(context.Background(), g, bundles, registry.BundleOptions{}))

	all := bundles.Bundles()
	require.Len(t, all, 2)

	sharedID := assetgraph.AssetID("/proj/shared.js", browser, 0)
	assert.Equal(t, []string{assetgraph.AssetID("/proj/a.js", browser, 0)}, all[0].EntryAssetIDs)
	assert.Equal(t, []string{assetgraph.AssetID("/proj/b.js", browser, 0)}, all[1].EntryAssetIDs)
	// Each bundle carries the full closure, shared module included.
	assert.True(t, all[0].Assets.HasAsset(sharedID))
	assert.True(t, all[1].Assets.HasAsset(sharedID))
	assert.Equal(t, browser, all[0].Env)
}

func TestBundleClosuresAreIndependent(t *testing.T) {
	g := twoEntryGraph(t)
	bundles := bundlegraph.NewGraph()
	require.NoError(t, (&Bundler{}).Bundle(context.Background(), g, bundles, registry.BundleOptions{}))

	sharedID := assetgraph.AssetID("/proj/shared.js", browser, 0)
	all := bundles.Bundles()
	all[0].Assets.RemoveAsset(sharedID)
	assert.False(t, all[0].Assets.HasAsset(sharedID))
	assert.True(t, all[1].Assets.HasAsset(sharedID))
	assert.True(t, g.HasAsset(sharedID))
}

func TestRegister(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	assert.NotNil(t, r.Bundler())
}
