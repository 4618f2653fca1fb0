package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edge-sentry/ipcbridge/internal/config"
)

func TestDefaultsMatchSpecValues(t *testing.T) {
	c := config.Defaults()
	require.Equal(t, 333, c.StandbyPeriodMs)
	require.Equal(t, 33, c.AlarmedPeriodMs)
	require.Equal(t, 5, c.ValidationFrames)
	require.Equal(t, 5, c.TrackingExitFrames)
	require.InDelta(t, 0.5, c.PersonConfidenceThreshold, 1e-9)
	require.Equal(t, uint32(0), c.PersonClassID)
	require.Equal(t, 32*1024*1024, c.FrameBufferBytes)
	require.Equal(t, 1*1024*1024, c.DetectionBufferBytes)
	require.Equal(t, 10, c.SignalQueueCapacity)
	require.Equal(t, 50, c.FreshnessThresholdMsOnWake)
	require.Equal(t, "/dev/shm/frame_buffer", c.FrameBufferPath)
	require.Equal(t, "/frame_capture_to_inference", c.FrameToInferenceQueue)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SENTRY_STANDBY_PERIOD_MS", "500")
	t.Setenv("SENTRY_PERSON_CLASS_ID", "7")

	c, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 500, c.StandbyPeriodMs)
	require.Equal(t, uint32(7), c.PersonClassID)
}

func TestTomlFileOverridesEnv(t *testing.T) {
	t.Setenv("SENTRY_STANDBY_PERIOD_MS", "500")

	path := filepath.Join(t.TempDir(), "sentry.toml")
	require.NoError(t, os.WriteFile(path, []byte("standby_period_ms = 1000\n"), 0o644))

	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 1000, c.StandbyPeriodMs)
}

func TestLoadRejectsMissingConfigFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoadRejectsOutOfRangeConfidenceThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentry.toml")
	require.NoError(t, os.WriteFile(path, []byte("person_confidence_threshold = 1.5\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsNonPositivePeriod(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentry.toml")
	require.NoError(t, os.WriteFile(path, []byte("standby_period_ms = 0\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}
