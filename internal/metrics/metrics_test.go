package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edge-sentry/ipcbridge/internal/metrics"
)

func TestCountersCopyIsIndependentSnapshot(t *testing.T) {
	c := &metrics.Counters{}
	c.AddFramesWritten(3)
	c.AddReadsDiscardedTorn(1)

	snap := c.Copy()
	require.Equal(t, uint64(3), snap.FramesWritten)
	require.Equal(t, uint64(1), snap.ReadsDiscardedTorn)

	c.AddFramesWritten(1)
	require.Equal(t, uint64(3), snap.FramesWritten, "snapshot must not change after further increments")
}

func TestSnapshotHeaderAndToSliceAlign(t *testing.T) {
	c := &metrics.Counters{}
	c.AddSignalsPosted(2)
	snap := c.Copy()

	header := snap.Header()
	row := snap.ToSlice()
	require.Len(t, row, len(header))
}

func TestSetModeTransitions(t *testing.T) {
	c := &metrics.Counters{}
	c.SetModeTransitions(5)
	require.Equal(t, uint64(5), c.Copy().ModeTransitions)
}
