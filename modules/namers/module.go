// Package namers provides the default bundle naming chain: an explicit
// name requested by the bundle wins, otherwise the bundle is named after
// its entry asset's file stem plus a short stable hash.
package namers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/packden/packden/internal/bundlegraph"
	"github.com/packden/packden/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the naming chain. Order matters: the explicit namer
// must run before the entry namer.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterNamer("explicit", &Explicit{})
	r.RegisterNamer("entry", &Entry{})
}

// Explicit names bundles that carry an explicit name, and passes on all
// others.
type Explicit struct{}

// Name returns the bundle's explicit name under the dist directory, or
// empty to defer to the next namer.
func (n *Explicit) Name(ctx context.Context, b *bundlegraph.Bundle, opts registry.NamerOptions) (string, error) {
	if b.ExplicitName == "" {
		return "", nil
	}
	return filepath.Join(opts.DistDir, b.ExplicitName), nil
}

// Entry names bundles after their first entry asset.
type Entry struct{}

// Name derives "<stem>.<hash>.js" from the entry asset's file path. The
// hash is stable across builds, so unchanged bundles keep their names.
func (n *Entry) Name(ctx context.Context, b *bundlegraph.Bundle, opts registry.NamerOptions) (string, error) {
	if len(b.EntryAssetIDs) == 0 {
		return "", nil
	}
	node, ok := b.Assets.Node(b.EntryAssetIDs[0])
	if !ok || node.Asset == nil {
		return "", fmt.Errorf("namers: entry asset %s missing from bundle %s", b.EntryAssetIDs[0], b.ID)
	}
	base := filepath.Base(node.Asset.FilePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(opts.DistDir, fmt.Sprintf("%s.%s.js", stem, shortHash(b.EntryAssetIDs[0]))), nil
}

// shortHash derives a stable 8-character tag from an asset ID.
func shortHash(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:8]
}
