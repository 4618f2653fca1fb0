package inferengine

import (
	"github.com/edge-sentry/ipcbridge/internal/detection"
)

// SimConfig parameterizes the simulated engine's deterministic decision
// rule, grounded on other_examples' camera_reader.go's use of the frame
// sequence number as the sole deterministic input.
type SimConfig struct {
	PersonClassID uint32
	// EveryNthFrame frames (1-indexed by FrameNumber) report one
	// synthetic person detection; all others report zero boxes. This
	// gives callers a reproducible present/absent sequence to drive
	// internal/sentry without depending on pixel content.
	EveryNthFrame uint64
}

// Simulated is a deterministic stand-in for a real neural engine.
type Simulated struct {
	cfg SimConfig
}

// NewSimulated builds a simulated engine. EveryNthFrame defaults to 3
// (person present on roughly a third of frames) if unset.
func NewSimulated(cfg SimConfig) *Simulated {
	if cfg.EveryNthFrame == 0 {
		cfg.EveryNthFrame = 3
	}
	return &Simulated{cfg: cfg}
}

// Infer reports one synthetic person box every EveryNthFrame frames and
// none otherwise.
func (s *Simulated) Infer(f FrameView) ([]detection.BoundingBox, error) {
	if f.FrameNumber%s.cfg.EveryNthFrame != 0 {
		return nil, nil
	}
	return []detection.BoundingBox{
		{
			X1:         0.25 * float32(f.Width),
			Y1:         0.2 * float32(f.Height),
			X2:         0.75 * float32(f.Width),
			Y2:         0.95 * float32(f.Height),
			Confidence: 0.91,
			ClassID:    s.cfg.PersonClassID,
		},
	}, nil
}

// Close is a no-op for the simulated engine.
func (s *Simulated) Close() error { return nil }
