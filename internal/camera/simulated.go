package camera

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/edge-sentry/ipcbridge/internal/frame"
)

// SimConfig parameterizes the simulated camera's synthetic frames.
type SimConfig struct {
	CameraID uint32
	Width    uint32
	Height   uint32
	Format   frame.Format
}

func (c SimConfig) channels() uint8 {
	if c.Format == frame.FormatGRAY {
		return 1
	}
	return 3
}

// Simulated is a deterministic stand-in for a real camera driver: each
// Acquire call returns a new synthetic frame immediately (or ctx's error
// if ctx is already done), grounded on other_examples' camera_reader.go
// ticker-driven capture loop, adapted here to a synchronous pull since
// the producer (not the camera) owns capture cadence (spec §4.5).
type Simulated struct {
	cfg SimConfig
	seq uint64
}

// NewSimulated builds a simulated source.
func NewSimulated(cfg SimConfig) *Simulated {
	if cfg.Width == 0 {
		cfg.Width = 640
	}
	if cfg.Height == 0 {
		cfg.Height = 480
	}
	return &Simulated{cfg: cfg}
}

// Acquire synthesizes one frame. The pixel buffer is filled with a
// pattern derived from the frame number so tests can assert on content
// without a real sensor.
func (s *Simulated) Acquire(ctx context.Context) (frame.Frame, error) {
	select {
	case <-ctx.Done():
		return frame.Frame{}, ctx.Err()
	default:
	}

	n := atomic.AddUint64(&s.seq, 1)
	channels := s.cfg.channels()
	size := int(s.cfg.Width) * int(s.cfg.Height) * int(channels)
	pixels := make([]byte, size)
	fill := byte(n % 256)
	for i := range pixels {
		pixels[i] = fill
	}

	return frame.Frame{
		FrameNumber: n,
		TimestampNs: uint64(time.Now().UnixNano()),
		CameraID:    s.cfg.CameraID,
		Width:       s.cfg.Width,
		Height:      s.cfg.Height,
		Channels:    channels,
		Format:      s.cfg.Format,
		Pixels:      pixels,
	}, nil
}

// Flush has nothing to discard: the simulated source holds no internal
// buffer between Acquire calls.
func (s *Simulated) Flush(olderThan time.Duration) int { return 0 }

// Close is a no-op for the simulated source.
func (s *Simulated) Close() error { return nil }

// JitterInterval returns interval +/- 10% jitter, matching the
// producer's tolerance for non-exact capture cadence (spec §4.5).
func JitterInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		return interval
	}
	jitter := time.Duration(rand.Int63n(int64(interval) / 5)) // up to 20%
	return interval - interval/10 + jitter
}
