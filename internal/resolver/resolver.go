// Package resolver defines the pluggable module-resolution capability and
// the thin runner facade the build engine calls through.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/packden/packden/internal/assetgraph"
	"github.com/packden/packden/internal/ctxlog"
)

// Resolver maps a dependency specifier to a resolved file path. A miss is
// reported as a NotFoundError (possibly wrapped); any other error is a
// resolver-specific failure.
type Resolver interface {
	Resolve(ctx context.Context, dep *assetgraph.Dependency) (string, error)
}

// NotFoundError reports that a specifier did not resolve to any module.
// Optional mirrors the dependency's flag so callers can decide whether the
// miss is tolerable without holding on to the dependency.
type NotFoundError struct {
	Specifier string
	From      string
	Optional  bool
}

func (e *NotFoundError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("module not found: %q", e.Specifier)
	}
	return fmt.Sprintf("module not found: %q from %s", e.Specifier, e.From)
}

// Runner is the facade the engine resolves through. It adds no caching of
// its own; resolution is assumed idempotent for a given dependency and
// environment within one build.
type Runner struct {
	resolver Resolver
}

// NewRunner wraps the configured resolver capability.
func NewRunner(r Resolver) *Runner {
	return &Runner{resolver: r}
}

// Resolve delegates to the capability. Misses come back as a NotFoundError
// carrying the dependency's optional flag; other failures are wrapped with
// the specifier for context.
func (r *Runner) Resolve(ctx context.Context, dep *assetgraph.Dependency) (string, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Resolving dependency.", "specifier", dep.Specifier, "from", dep.SourcePath)

	path, err := r.resolver.Resolve(ctx, dep)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return "", &NotFoundError{
				Specifier: dep.Specifier,
				From:      dep.SourcePath,
				Optional:  dep.Optional,
			}
		}
		return "", fmt.Errorf("resolve %q: %w", dep.Specifier, err)
	}

	logger.Debug("Dependency resolved.", "specifier", dep.Specifier, "path", path)
	return path, nil
}
