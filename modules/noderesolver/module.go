// Package noderesolver implements Node-style module resolution on the
// local filesystem: relative specifiers with extension probing, and bare
// specifiers looked up through node_modules directories walking up from
// the importing file.
package noderesolver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/packden/packden/internal/assetgraph"
	"github.com/packden/packden/internal/ctxlog"
	"github.com/packden/packden/internal/registry"
	"github.com/packden/packden/internal/resolver"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	RootDir string
}

// Register registers the resolver capability.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterResolver(New(m.RootDir))
}

// extensions are probed in order when a specifier has no match as-is.
var extensions = []string{".js", ".mjs", ".json"}

// Resolver resolves dependency specifiers against the real filesystem.
type Resolver struct {
	rootDir string
}

// New creates a resolver anchored at the project root. Entry specifiers
// (dependencies with no source file) resolve relative to it.
func New(rootDir string) *Resolver {
	return &Resolver{rootDir: rootDir}
}

// Resolve maps one dependency to an absolute file path.
func (r *Resolver) Resolve(ctx context.Context, dep *assetgraph.Dependency) (string, error) {
	logger := ctxlog.FromContext(ctx)

	var path string
	var ok bool
	switch {
	case dep.SourcePath == "":
		// Entry dependency, anchored at the project root.
		path, ok = probe(filepath.Join(r.rootDir, dep.Specifier))
	case strings.HasPrefix(dep.Specifier, "./") || strings.HasPrefix(dep.Specifier, "../"):
		path, ok = probe(filepath.Join(filepath.Dir(dep.SourcePath), dep.Specifier))
	case filepath.IsAbs(dep.Specifier):
		path, ok = probe(dep.Specifier)
	default:
		path, ok = r.resolveBare(dep)
	}
	if !ok {
		return "", &resolver.NotFoundError{Specifier: dep.Specifier, From: dep.SourcePath}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	logger.Debug("Resolved dependency.", "specifier", dep.Specifier, "path", abs)
	return abs, nil
}

// resolveBare walks node_modules directories from the importing file up
// to the project root.
func (r *Resolver) resolveBare(dep *assetgraph.Dependency) (string, bool) {
	dir := filepath.Dir(dep.SourcePath)
	for {
		candidate := filepath.Join(dir, "node_modules", dep.Specifier)
		if path, ok := probe(candidate); ok {
			return path, true
		}
		parent := filepath.Dir(dir)
		if parent == dir || dir == r.rootDir {
			return "", false
		}
		dir = parent
	}
}

// probe tries a candidate path as a file, with each known extension
// appended, and as a package directory.
func probe(candidate string) (string, bool) {
	if isFile(candidate) {
		return candidate, true
	}
	for _, ext := range extensions {
		if p := candidate + ext; isFile(p) {
			return p, true
		}
	}
	if isDir(candidate) {
		return probeDir(candidate)
	}
	return "", false
}

// probeDir resolves a directory the way Node does: package.json "main"
// first, then index files.
func probeDir(dir string) (string, bool) {
	if main, ok := packageMain(filepath.Join(dir, "package.json")); ok {
		if p, ok := probe(filepath.Join(dir, main)); ok {
			return p, true
		}
	}
	for _, ext := range extensions {
		if p := filepath.Join(dir, "index"+ext); isFile(p) {
			return p, true
		}
	}
	return "", false
}

func packageMain(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Main == "" {
		return "", false
	}
	return pkg.Main, true
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
