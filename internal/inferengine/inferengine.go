// Package inferengine defines the narrow interface the inference binary
// needs from a neural engine (spec.md §1 treats it as an opaque external
// collaborator) plus a deterministic simulated implementation used by the
// tests, cmd/inference and cmd/simulate.
package inferengine

import "github.com/edge-sentry/ipcbridge/internal/detection"

// Engine runs object detection over one frame's pixels.
type Engine interface {
	Infer(f FrameView) ([]detection.BoundingBox, error)
	Close() error
}

// FrameView is the subset of internal/frame.Frame an engine needs,
// kept separate so inferengine does not import frame's codec concerns.
type FrameView struct {
	FrameNumber uint64
	Width       uint32
	Height      uint32
	Pixels      []byte
}
