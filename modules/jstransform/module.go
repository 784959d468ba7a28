// Package jstransform turns JavaScript sources into assets. It scans
// static import, re-export and require forms for dependency specifiers
// and memoizes results by content hash, so repeated builds of unchanged
// files skip the scan entirely.
package jstransform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/packden/packden/internal/assetgraph"
	"github.com/packden/packden/internal/ctxlog"
	"github.com/packden/packden/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// CacheSize overrides the default transform cache capacity.
	CacheSize int
}

// Register registers the transformer capability.
func (m *Module) Register(r *registry.Registry) {
	size := m.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	r.RegisterTransformer(New(size))
}

const defaultCacheSize = 1024

var specifierPatterns = []*regexp.Regexp{
	// import defaultExport from "mod"; import { a } from "mod"; import "mod"
	regexp.MustCompile(`(?m)^\s*import\s+(?:[\w*\s{},$]+\s+from\s+)?['"]([^'"]+)['"]`),
	// export { a } from "mod"; export * from "mod"
	regexp.MustCompile(`(?m)^\s*export\s+[\w*\s{},$]+\s+from\s+['"]([^'"]+)['"]`),
	// require("mod"), import("mod")
	regexp.MustCompile(`(?:\brequire|\bimport)\s*\(\s*['"]([^'"]+)['"]\s*\)`),
}

// Transformer is the JavaScript implementation of the transformer
// capability.
type Transformer struct {
	cache *lru.Cache[string, []assetgraph.DependencyDescriptor]
}

// New creates a transformer with a content-addressed dependency cache of
// the given capacity.
func New(cacheSize int) *Transformer {
	cache, err := lru.New[string, []assetgraph.DependencyDescriptor](cacheSize)
	if err != nil {
		panic(fmt.Sprintf("jstransform: cache size %d: %v", cacheSize, err))
	}
	return &Transformer{cache: cache}
}

// Run transforms one request. Inline code on the request takes precedence
// over the file on disk, which is how synthetic runtime requests flow
// through the same transformer.
func (t *Transformer) Run(ctx context.Context, req *assetgraph.Request) (*assetgraph.TransformResult, error) {
	code := req.Code
	if code == "" {
		data, err := os.ReadFile(req.FilePath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", req.FilePath, err)
		}
		code = string(data)
	}

	sum := sha256.Sum256([]byte(code))
	key := hex.EncodeToString(sum[:])

	deps, ok := t.cache.Get(key)
	if !ok {
		deps = scanSpecifiers(code)
		t.cache.Add(key, deps)
	} else {
		ctxlog.FromContext(ctx).Debug("Transform cache hit.", "path", req.FilePath)
	}

	return &assetgraph.TransformResult{
		Assets: []assetgraph.GeneratedAsset{{
			Code: code,
			Meta: map[string]string{"contentHash": key},
			Deps: deps,
		}},
	}, nil
}

// scanSpecifiers extracts dependency specifiers in source order, without
// duplicates.
func scanSpecifiers(code string) []assetgraph.DependencyDescriptor {
	type hit struct {
		offset    int
		specifier string
	}
	var hits []hit
	seen := map[string]bool{}
	for _, pattern := range specifierPatterns {
		for _, m := range pattern.FindAllStringSubmatchIndex(code, -1) {
			spec := code[m[2]:m[3]]
			if seen[spec] {
				continue
			}
			seen[spec] = true
			hits = append(hits, hit{offset: m[2], specifier: spec})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].offset < hits[j-1].offset; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	deps := make([]assetgraph.DependencyDescriptor, 0, len(hits))
	for _, h := range hits {
		deps = append(deps, assetgraph.DependencyDescriptor{Specifier: h.specifier})
	}
	return deps
}
