package status_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edge-sentry/ipcbridge/internal/controlbyte"
	"github.com/edge-sentry/ipcbridge/internal/metrics"
	"github.com/edge-sentry/ipcbridge/internal/status"
)

func TestWritePersistsReadableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	w := status.NewWriter(path)

	err := w.Write("Tracking", 0, controlbyte.Alarmed, metrics.Snapshot{FramesRead: 10})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var snap status.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Equal(t, "Tracking", snap.State)
	require.Equal(t, "ALARMED", snap.Mode)
	require.Equal(t, uint64(10), snap.Metrics.FramesRead)
}

func TestWriteWithEmptyPathIsNoop(t *testing.T) {
	w := status.NewWriter("")
	require.NoError(t, w.Write("Standby", 0, controlbyte.Standby, metrics.Snapshot{}))
}
