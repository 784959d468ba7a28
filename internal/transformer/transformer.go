// Package transformer defines the transform capability boundary. The
// engine only sees this interface; the actual work may happen in an
// external worker pool behind an asynchronous call.
package transformer

import (
	"context"

	"github.com/packden/packden/internal/assetgraph"
)

// Transformer turns one transform request into produced assets plus the
// build-input files it started or stopped reading. Implementations must be
// idempotent for identical input.
type Transformer interface {
	Run(ctx context.Context, req *assetgraph.Request) (*assetgraph.TransformResult, error)
}

// Func adapts a plain function to the Transformer interface.
type Func func(ctx context.Context, req *assetgraph.Request) (*assetgraph.TransformResult, error)

// Run calls f.
func (f Func) Run(ctx context.Context, req *assetgraph.Request) (*assetgraph.TransformResult, error) {
	return f(ctx, req)
}
