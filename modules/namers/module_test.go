package namers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packden/packden/internal/assetgraph"
	"github.com/packden/packden/internal/bundlegraph"
	"github.com/packden/packden/internal/registry"
)

var browser = assetgraph.Environment{Context: "browser"}

// bundleFor creates a bundle whose graph holds a single entry asset for
// the given file.
func bundleFor(t *testing.T, filePath string) *bundlegraph.Bundle {
	t.Helper()
	g := assetgraph.New()
	g.Initialize(browser, "entry")
	entry := g.Entries()[0]
	req, _, err := g.ResolveDependency(entry.ID, filePath)
	require.NoError(t, err)
	_, _, _, err = g.ResolveRequest(req, &assetgraph.TransformResult{
		Assets: []assetgraph.GeneratedAsset{{Code: "code"}},
	}, 0)
	require.NoError(t, err)
	assetID := assetgraph.AssetID(filePath, browser, 0)
	return bundlegraph.New(browser, g.SubGraph(assetID), assetID)
}

func TestExplicitNamer(t *testing.T) {
	b := bundleFor(t, "/proj/src/main.js")
	opts := registry.NamerOptions{DistDir: "dist"}

	t.Run("passes without an explicit name", func(t *testing.T) {
		name, err := (&Explicit{}).Name(context.Background(), b, opts)
		require.NoError(t, err)
		assert.Empty(t, name)
	})

	t.Run("uses the explicit name", func(t *testing.T) {
		b.ExplicitName = "vendor.js"
		name, err := (&Explicit{}).Name(context.Background(), b, opts)
		require.NoError(t, err)
		assert.Equal(t, "dist/vendor.js", name)
	})
}

func TestEntryNamer(t *testing.T) {
	b := bundleFor(t, "/proj/src/main.js")
	name, err := (&Entry{}).Name(context.Background(), b, registry.NamerOptions{DistDir: "dist"})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(b.EntryAssetIDs[0]))
	want := fmt.Sprintf("dist/main.%s.js", hex.EncodeToString(sum[:])[:8])
	assert.Equal(t, want, name)
}

func TestEntryNamerIsStable(t *testing.T) {
	a := bundleFor(t, "/proj/src/main.js")
	b := bundleFor(t, "/proj/src/main.js")

	nameA, err := (&Entry{}).Name(context.Background(), a, registry.NamerOptions{DistDir: "dist"})
	require.NoError(t, err)
	nameB, err := (&Entry{}).Name(context.Background(), b, registry.NamerOptions{DistDir: "dist"})
	require.NoError(t, err)
	assert.Equal(t, nameA, nameB)
}

func TestEntryNamerPassesWithoutEntryAssets(t *testing.T) {
	b := bundlegraph.New(browser, assetgraph.New())
	name, err := (&Entry{}).Name(context.Background(), b, registry.NamerOptions{})
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestRegisterOrder(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)

	namers := r.Namers()
	require.Len(t, namers, 2)
	assert.IsType(t, &Explicit{}, namers[0])
	assert.IsType(t, &Entry{}, namers[1])
}
