package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/packden/packden/internal/assetgraph"
	"github.com/packden/packden/internal/ctxlog"
	"github.com/packden/packden/internal/resolver"
)

// Build drives the graph to completeness and returns it. A file change
// arriving mid-build cancels in-flight work at its next checkpoint and
// Build returns ErrBuildAborted; the caller should then Build again.
//
// Convergence runs in two phases with a hard barrier between them. The
// update phase re-processes every invalid node shallowly: transforms run,
// but dependencies they newly discover are not cascaded to resolution.
// The complete phase then sweeps every incomplete node (including those
// the update phase left behind) with full processing, which may enqueue
// further work until the queue drains with nothing incomplete left. The
// split keeps a file change from paying a whole-graph re-resolve: only
// the directly invalid nodes carry the "maybe new structure" cost.
func (e *Engine) Build(ctx context.Context) (*assetgraph.Graph, error) {
	buildID := uuid.NewString()[:8]
	logger := ctxlog.FromContext(ctx).With("build", buildID)
	ctx = ctxlog.WithLogger(ctx, logger)

	tok := e.newToken()
	start := time.Now()

	invalid := e.graph.InvalidNodes()
	if len(invalid) > 0 {
		logger.Debug("Update phase starting.", "invalid_nodes", len(invalid))
		for _, id := range invalid {
			id := id
			e.queue.Add(func(ctx context.Context) error {
				return e.processNode(ctx, id, tok, true)
			})
		}
		if err := e.queue.Run(ctx); err != nil {
			return nil, err
		}
	}

	incomplete := e.graph.IncompleteNodes()
	if len(incomplete) > 0 {
		logger.Debug("Complete phase starting.", "incomplete_nodes", len(incomplete))
		for _, id := range incomplete {
			id := id
			e.queue.Add(func(ctx context.Context) error {
				return e.processNode(ctx, id, tok, false)
			})
		}
		if err := e.queue.Run(ctx); err != nil {
			return nil, err
		}
	}

	// An invalidation that lands between queue drains still aborts: the
	// graph was mutated behind this build's back.
	if tok.aborted() {
		logger.Debug("Build aborted after drain.")
		return nil, ErrBuildAborted
	}

	if !e.graph.Complete() {
		return nil, fmt.Errorf("build %s: graph still incomplete after drain", buildID)
	}

	logger.Info("Build finished.", "duration", time.Since(start))
	return e.graph, nil
}

// processNode dispatches one unit of work by node kind. Asset nodes (or
// anything else) never legitimately reach this dispatch.
func (e *Engine) processNode(ctx context.Context, id string, tok *token, shallow bool) error {
	n, ok := e.graph.Node(id)
	if !ok {
		// Node removed since it was scheduled; nothing to do.
		return nil
	}
	switch n.Kind {
	case assetgraph.KindDependency:
		return e.resolveDependency(ctx, n.Dependency, tok)
	case assetgraph.KindRequest:
		return e.transformRequest(ctx, n.Request, tok, shallow)
	default:
		return &MalformedNodeError{ID: id, Kind: n.Kind}
	}
}

// resolveDependency resolves one dependency and attaches (or reuses) the
// transform request for the resolved file. The cancellation checkpoint
// sits between the resolver returning and the graph mutation, so an
// aborted task leaves no partial state behind.
func (e *Engine) resolveDependency(ctx context.Context, dep *assetgraph.Dependency, tok *token) error {
	logger := ctxlog.FromContext(ctx)

	path, err := e.resolver.Resolve(ctx, dep)
	if err != nil {
		var nf *resolver.NotFoundError
		if errors.As(err, &nf) && nf.Optional {
			logger.Debug("Optional dependency not found, skipping.", "specifier", dep.Specifier)
			e.graph.SkipDependency(dep.ID)
			return nil
		}
		return err
	}

	if tok.aborted() {
		return ErrBuildAborted
	}

	req, created, err := e.graph.ResolveDependency(dep.ID, path)
	if err != nil {
		return err
	}
	if created {
		if err := e.watcher.Watch(req.FilePath); err != nil {
			logger.Warn("Failed to watch file.", "path", req.FilePath, "error", err)
		}
		e.queue.Add(func(ctx context.Context) error {
			return e.transformRequest(ctx, req, tok, false)
		})
	}
	return nil
}

// transformRequest runs the transformer for one request and attaches its
// result. When shallow, newly discovered dependencies are left incomplete
// for the complete phase instead of being cascaded to resolution here.
func (e *Engine) transformRequest(ctx context.Context, req *assetgraph.Request, tok *token, shallow bool) error {
	logger := ctxlog.FromContext(ctx)

	start := time.Now()
	res, err := e.transformer.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("transform %s: %w", req.FilePath, err)
	}

	if tok.aborted() {
		return ErrBuildAborted
	}

	added, removed, newDeps, err := e.graph.ResolveRequest(req, res, time.Since(start))
	if err != nil {
		return err
	}

	for _, f := range added {
		if err := e.watcher.Watch(f); err != nil {
			logger.Warn("Failed to watch file.", "path", f, "error", err)
		}
	}
	for _, f := range removed {
		if err := e.watcher.Unwatch(f); err != nil {
			logger.Warn("Failed to unwatch file.", "path", f, "error", err)
		}
	}

	if shallow {
		return nil
	}
	for _, dep := range newDeps {
		dep := dep
		e.queue.Add(func(ctx context.Context) error {
			return e.resolveDependency(ctx, dep, tok)
		})
	}
	return nil
}
