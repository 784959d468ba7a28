package engine

import (
	"errors"
	"fmt"

	"github.com/packden/packden/internal/assetgraph"
)

// ErrBuildAborted is returned by Build when a file change invalidated the
// build mid-flight. It is a distinct sentinel, not a genuine failure:
// callers should discard the in-progress result and start a new Build
// instead of surfacing it. Detect it with errors.Is.
var ErrBuildAborted = errors.New("build aborted by invalidation")

// MalformedNodeError reports a node of unexpected kind reaching the
// processing dispatch. It indicates an internal consistency bug and is
// never expected in normal operation.
type MalformedNodeError struct {
	ID   string
	Kind assetgraph.Kind
}

func (e *MalformedNodeError) Error() string {
	return fmt.Sprintf("malformed graph node %q: kind %s cannot be processed", e.ID, e.Kind)
}
