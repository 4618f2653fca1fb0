// Package detection implements the Detection payload (spec §3): boxes
// correlated back to a Frame by frame_number, published over the same
// generic atomic protocol as internal/frame.
package detection

import (
	"github.com/edge-sentry/ipcbridge/internal/pubsub"
	"github.com/edge-sentry/ipcbridge/internal/shmslot"
)

// BoundingBox is one detected object. Coordinates are clamped by the
// producer (the inference engine) to [0, width] x [0, height]; confidence
// to [0, 1]. x1<=x2 and y1<=y2 are invariants the producer upholds.
type BoundingBox struct {
	X1, Y1, X2, Y2 float32
	Confidence     float32
	ClassID        uint32
}

// Detection is the inference-side payload: identity fields copied from
// the source Frame for correlation, plus the boxes found in it.
type Detection struct {
	FrameNumber uint64
	TimestampNs uint64
	CameraID    uint32
	Boxes       []BoundingBox
}

// Writer publishes Detection values into the detection slot.
type Writer = pubsub.Writer[Detection]

// Reader reads committed Detection values from the detection slot.
type Reader = pubsub.Reader[Detection]

// NewWriter wraps a created detection slot for publication.
func NewWriter(slot *shmslot.Slot) *Writer {
	return pubsub.NewWriter[Detection](slot, codec{})
}

// NewReader wraps an opened detection slot for reading.
func NewReader(slot *shmslot.Slot, opts ...pubsub.ReaderOption) *Reader {
	return pubsub.NewReader[Detection](slot, codec{}, opts...)
}
