package camera_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edge-sentry/ipcbridge/internal/camera"
	"github.com/edge-sentry/ipcbridge/internal/frame"
)

func TestSimulatedAcquireProducesIncreasingFrameNumbers(t *testing.T) {
	src := camera.NewSimulated(camera.SimConfig{Width: 32, Height: 16, Format: frame.FormatGRAY})

	f1, err := src.Acquire(context.Background())
	require.NoError(t, err)
	f2, err := src.Acquire(context.Background())
	require.NoError(t, err)

	require.Equal(t, uint64(1), f1.FrameNumber)
	require.Equal(t, uint64(2), f2.FrameNumber)
	require.Len(t, f1.Pixels, 32*16)
	require.Equal(t, uint8(1), f1.Channels)
}

func TestSimulatedAcquireRespectsCancellation(t *testing.T) {
	src := camera.NewSimulated(camera.SimConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
