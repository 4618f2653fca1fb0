//go:build linux

package signalqueue_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edge-sentry/ipcbridge/internal/signalqueue"
)

func uniqueName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("/ipcbridge_test_%d_%s", os.Getpid(), t.Name())
}

func TestCreatePostTryWait(t *testing.T) {
	name := uniqueName(t)
	q, err := signalqueue.Create(name, 4)
	require.NoError(t, err)
	defer q.Close()

	ok, err := q.TryWait()
	require.NoError(t, err)
	require.False(t, ok, "empty queue must not yield a token")

	require.NoError(t, q.Post())
	ok, err = q.TryWait()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDrainIsIdempotentOnEmptyQueue(t *testing.T) {
	name := uniqueName(t)
	q, err := signalqueue.Create(name, 4)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Post())
	require.NoError(t, q.Post())

	n, err := q.Drain()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = q.Drain()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestPostOverflowReturnsErrOverflow(t *testing.T) {
	name := uniqueName(t)
	q, err := signalqueue.Create(name, 1)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Post())
	err = q.Post()
	require.ErrorIs(t, err, signalqueue.ErrOverflow)
}

func TestOpenMissingQueueFails(t *testing.T) {
	_, err := signalqueue.Open("/ipcbridge_test_missing_queue")
	require.Error(t, err)
	var setupErr *signalqueue.SetupError
	require.ErrorAs(t, err, &setupErr)
	require.Equal(t, signalqueue.KindNotFound, setupErr.Kind)
}
