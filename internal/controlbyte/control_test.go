package controlbyte_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edge-sentry/ipcbridge/internal/controlbyte"
)

func TestCreateOrOpenStartsStandby(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentry_control")

	w, err := controlbyte.CreateOrOpen(path)
	require.NoError(t, err)
	defer w.Close()

	require.Equal(t, controlbyte.Standby, w.Load())
}

func TestStoreVisibleToReadOnlyAttach(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentry_control")

	w, err := controlbyte.CreateOrOpen(path)
	require.NoError(t, err)
	defer w.Close()

	r, err := controlbyte.OpenReadOnly(path)
	require.NoError(t, err)
	defer r.Close()

	w.Store(controlbyte.Alarmed)
	require.Equal(t, controlbyte.Alarmed, r.Load())

	w.Store(controlbyte.Standby)
	require.Equal(t, controlbyte.Standby, r.Load())
}

func TestOpenReadOnlyNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing")

	_, err := controlbyte.OpenReadOnly(path)
	require.Error(t, err)
}
