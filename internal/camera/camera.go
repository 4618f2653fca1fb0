// Package camera defines the narrow interface the producer needs from a
// camera driver (spec.md §1 treats the driver itself as an opaque
// external collaborator) plus a deterministic simulated implementation
// used by the tests, cmd/producer and cmd/simulate.
package camera

import (
	"context"
	"time"

	"github.com/edge-sentry/ipcbridge/internal/frame"
)

// Source is the producer's view of a camera device.
type Source interface {
	// Acquire blocks until one frame is available or ctx is done.
	Acquire(ctx context.Context) (frame.Frame, error)

	// Flush discards any internally buffered frames older than
	// olderThan, returning the number discarded. Real V4L2-backed
	// adapters use this to avoid handing stale frames to the pipeline
	// after a capture-rate change; the simulated adapter has no
	// internal buffer and always returns 0.
	Flush(olderThan time.Duration) int

	Close() error
}
