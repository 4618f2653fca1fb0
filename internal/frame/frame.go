// Package frame implements the Frame payload (spec §3) over the generic
// atomic publication protocol in internal/pubsub: a schema-evolvable,
// random-access encoding with a zero-copy tail field for pixels.
package frame

import (
	"github.com/edge-sentry/ipcbridge/internal/pubsub"
	"github.com/edge-sentry/ipcbridge/internal/shmslot"
)

// Format identifies the pixel layout of a Frame.
type Format uint8

const (
	FormatBGR Format = iota
	FormatRGB
	FormatGRAY
)

func (f Format) String() string {
	switch f {
	case FormatBGR:
		return "BGR"
	case FormatRGB:
		return "RGB"
	case FormatGRAY:
		return "GRAY"
	default:
		return "UNKNOWN"
	}
}

// Frame is the capture-side payload: a frame number for correlation with
// its Detection, a monotonic timestamp, camera geometry, and the pixel
// tail field. Pixels is always the last field so a reader can hand out a
// direct slice into the slot's mapping without copying.
type Frame struct {
	FrameNumber uint64
	TimestampNs uint64
	CameraID    uint32
	Width       uint32
	Height      uint32
	Channels    uint8
	Format      Format
	Pixels      []byte
}

// Writer publishes Frame values into the frame slot.
type Writer = pubsub.Writer[Frame]

// Reader reads committed Frame values from the frame slot.
type Reader = pubsub.Reader[Frame]

// NewWriter wraps a created frame slot for publication.
func NewWriter(slot *shmslot.Slot) *Writer {
	return pubsub.NewWriter[Frame](slot, codec{})
}

// NewReader wraps an opened frame slot for reading.
func NewReader(slot *shmslot.Slot, opts ...pubsub.ReaderOption) *Reader {
	return pubsub.NewReader[Frame](slot, codec{}, opts...)
}
