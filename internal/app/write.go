package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/packden/packden/internal/bundlegraph"
	"github.com/packden/packden/internal/ctxlog"
)

// writeBundles renders every bundle to its named path. Within a bundle,
// assets are emitted dependency-first so a plain top-to-bottom evaluation
// sees every module before its importers.
func writeBundles(ctx context.Context, bundles *bundlegraph.Graph) error {
	logger := ctxlog.FromContext(ctx)
	return bundles.Traverse(func(b *bundlegraph.Bundle) error {
		if b.Name == "" {
			return fmt.Errorf("write bundle %s: bundle has no name", b.ID)
		}
		code, count := renderBundle(b)
		if err := os.MkdirAll(filepath.Dir(b.Name), 0o755); err != nil {
			return fmt.Errorf("write bundle %s: %w", b.Name, err)
		}
		if err := os.WriteFile(b.Name, []byte(code), 0o644); err != nil {
			return fmt.Errorf("write bundle %s: %w", b.Name, err)
		}
		logger.Info("Wrote bundle.", "path", b.Name, "assets", count)
		return nil
	})
}

// renderBundle concatenates the bundle's assets in dependency-first order
// and returns the code along with the number of emitted assets.
func renderBundle(b *bundlegraph.Bundle) (string, int) {
	var sb strings.Builder
	seen := make(map[string]bool)
	count := 0
	for _, entryID := range b.EntryAssetIDs {
		for _, asset := range b.Assets.ReachableAssets(entryID) {
			if seen[asset.ID] {
				continue
			}
			seen[asset.ID] = true
			count++
			fmt.Fprintf(&sb, "// %s\n", asset.FilePath)
			sb.WriteString(asset.Code)
			if !strings.HasSuffix(asset.Code, "\n") {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String(), count
}
