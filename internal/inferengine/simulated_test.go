package inferengine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edge-sentry/ipcbridge/internal/inferengine"
)

func TestSimulatedInfersOnEveryNthFrame(t *testing.T) {
	eng := inferengine.NewSimulated(inferengine.SimConfig{PersonClassID: 0, EveryNthFrame: 3})

	boxes, err := eng.Infer(inferengine.FrameView{FrameNumber: 1, Width: 100, Height: 100})
	require.NoError(t, err)
	require.Empty(t, boxes)

	boxes, err = eng.Infer(inferengine.FrameView{FrameNumber: 3, Width: 100, Height: 100})
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	require.Equal(t, uint32(0), boxes[0].ClassID)
}
