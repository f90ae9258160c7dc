// Package source defines where raw log text comes from. The backend API is
// the primary source; local files mounted from containers are supported as a
// supplemental source.
package source

import (
	"context"

	"github.com/crimson-sun/logdeck/internal/model"
)

// Source produces a bounded snapshot of raw lines for one log producer.
type Source interface {
	// ID is the source identifier lines are tagged with.
	ID() string

	// Fetch reads up to maxLines of the most recent output, in original
	// order with sequence indexes assigned.
	Fetch(ctx context.Context, maxLines int) ([]model.LogLine, error)
}

// Tailer is implemented by sources that can additionally deliver lines
// incrementally as they are produced.
type Tailer interface {
	// Tail emits lines in arrival order until ctx is cancelled. The channel
	// is closed when the tail ends.
	Tail(ctx context.Context) (<-chan model.LogLine, error)
}
