// Package jsruntime injects the browser loader prelude into bundles. The
// prelude is a synthetic asset built through the normal pipeline, so
// anything it imports is resolved, transformed and deduplicated like
// project code.
package jsruntime

import (
	"context"

	"github.com/packden/packden/internal/assetgraph"
	"github.com/packden/packden/internal/bundlegraph"
	"github.com/packden/packden/internal/ctxlog"
	"github.com/packden/packden/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the runtime capability.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRuntime("js-loader", &Runtime{})
}

// loaderPath is the synthetic file path of the prelude request. The
// scheme prefix keeps it out of the way of real files and of the file
// watcher.
const loaderPath = "packden:runtime/loader.js"

const loaderCode = `var __packden_modules = {};
var __packden_cache = {};
function __packden_define(id, factory) {
  __packden_modules[id] = factory;
}
function __packden_require(id) {
  if (__packden_cache[id]) return __packden_cache[id].exports;
  var module = { exports: {} };
  __packden_cache[id] = module;
  __packden_modules[id](module, module.exports, __packden_require);
  return module.exports;
}
`

// Runtime is the browser loader implementation of the runtime capability.
type Runtime struct{}

// Apply injects the loader prelude into browser bundles that have an
// entry asset. Node bundles run on the host require machinery and are
// left alone.
func (rt *Runtime) Apply(ctx context.Context, b *bundlegraph.Bundle, opts registry.RuntimeOptions) error {
	if b.Env.Context != "browser" || len(b.EntryAssetIDs) == 0 {
		return nil
	}
	req := &assetgraph.Request{
		ID:       assetgraph.RequestID(loaderPath, b.Env),
		FilePath: loaderPath,
		Env:      b.Env,
		Code:     loaderCode,
	}
	asset, err := opts.API.AddRuntimeAsset(ctx, opts.Bundles, b, b.EntryAssetIDs[0], req)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Injected loader prelude.", "bundle", b.ID, "asset", asset.ID)
	return nil
}
