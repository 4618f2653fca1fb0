package shmslot_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edge-sentry/ipcbridge/internal/shmslot"
)

func TestCreateOrOpenThenOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame_buffer")

	w, err := shmslot.CreateOrOpen(path, 4096)
	require.NoError(t, err)
	defer w.Close()

	require.Equal(t, uint64(0), w.LoadSequence())
	copy(w.Payload(), []byte("hello"))
	w.StoreSequence(1)

	r, err := shmslot.OpenReadOnly(path)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, uint64(1), r.LoadSequence())
	require.Equal(t, "hello", string(r.PayloadView()[:5]))
}

func TestCreateOrOpenRejectsUndersizedExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame_buffer")

	w, err := shmslot.CreateOrOpen(path, 64)
	require.NoError(t, err)
	w.Close()

	_, err = shmslot.CreateOrOpen(path, 4096)
	require.Error(t, err)
	var setupErr *shmslot.SetupError
	require.ErrorAs(t, err, &setupErr)
	require.Equal(t, shmslot.KindSizeMismatch, setupErr.Kind)
}

func TestOpenReadOnlyNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing")

	_, err := shmslot.OpenReadOnly(path)
	require.Error(t, err)
	var setupErr *shmslot.SetupError
	require.ErrorAs(t, err, &setupErr)
	require.Equal(t, shmslot.KindNotFound, setupErr.Kind)
}

func TestCreateOrOpenRejectsUndersizedRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame_buffer")

	_, err := shmslot.CreateOrOpen(path, 4)
	require.Error(t, err)
	var setupErr *shmslot.SetupError
	require.ErrorAs(t, err, &setupErr)
	require.Equal(t, shmslot.KindSizeMismatch, setupErr.Kind)
}
