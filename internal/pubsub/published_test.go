package pubsub_test

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edge-sentry/ipcbridge/internal/pubsub"
	"github.com/edge-sentry/ipcbridge/internal/shmslot"
)

// lengthPrefixedString is a minimal Codec[string] used only to exercise
// the generic publish/read protocol in isolation from frame/detection's
// real wire formats.
type lengthPrefixedString struct{}

func (lengthPrefixedString) Encode(v string, dst []byte) (int, error) {
	if 4+len(v) > len(dst) {
		return 0, pubsub.ErrPayloadTooLarge
	}
	binary.LittleEndian.PutUint32(dst[0:4], uint32(len(v)))
	copy(dst[4:], v)
	return 4 + len(v), nil
}

func (lengthPrefixedString) Verify(src []byte) (string, error) {
	if len(src) < 4 {
		return "", pubsub.ErrInvalidEncoding
	}
	n := binary.LittleEndian.Uint32(src[0:4])
	if int(n) > len(src)-4 {
		return "", pubsub.ErrInvalidEncoding
	}
	return string(src[4 : 4+n]), nil
}

func newSlot(t *testing.T) *shmslot.Slot {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slot")
	s, err := shmslot.CreateOrOpen(path, 256)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPublishThenReadLatestRoundTrips(t *testing.T) {
	slot := newSlot(t)
	w := pubsub.NewWriter[string](slot, lengthPrefixedString{})
	r := pubsub.NewReader[string](slot, lengthPrefixedString{})

	_, status, err := r.ReadLatest()
	require.NoError(t, err)
	require.Equal(t, pubsub.NoData, status)

	require.NoError(t, w.Publish("hello"))

	v, status, err := r.ReadLatest()
	require.NoError(t, err)
	require.Equal(t, pubsub.OK, status)
	require.Equal(t, "hello", v)
}

func TestReadNextRequiresNewSequence(t *testing.T) {
	slot := newSlot(t)
	w := pubsub.NewWriter[string](slot, lengthPrefixedString{})
	r := pubsub.NewReader[string](slot, lengthPrefixedString{})

	require.NoError(t, w.Publish("one"))
	v, status, err := r.ReadNext()
	require.NoError(t, err)
	require.Equal(t, pubsub.OK, status)
	require.Equal(t, "one", v)

	_, status, err = r.ReadNext()
	require.NoError(t, err)
	require.Equal(t, pubsub.NotNew, status)

	require.NoError(t, w.Publish("two"))
	v, status, err = r.ReadNext()
	require.NoError(t, err)
	require.Equal(t, pubsub.OK, status)
	require.Equal(t, "two", v)
}

func TestSkipFirstObservationDiscardsStaleContent(t *testing.T) {
	slot := newSlot(t)
	w := pubsub.NewWriter[string](slot, lengthPrefixedString{})
	require.NoError(t, w.Publish("stale-from-prior-lifetime"))

	r := pubsub.NewReader[string](slot, lengthPrefixedString{}, pubsub.SkipFirstObservation())

	_, status, err := r.ReadLatest()
	require.NoError(t, err)
	require.Equal(t, pubsub.NotNew, status)

	_, status, err = r.ReadLatest()
	require.NoError(t, err)
	require.Equal(t, pubsub.OK, status)
}

// racingCodec wraps lengthPrefixedString but bumps the slot's own
// sequence counter during Verify, simulating a writer publishing again
// between the reader's two sequence loads.
type racingCodec struct {
	slot *shmslot.Slot
}

func (c racingCodec) Encode(v string, dst []byte) (int, error) {
	return lengthPrefixedString{}.Encode(v, dst)
}

func (c racingCodec) Verify(src []byte) (string, error) {
	v, err := lengthPrefixedString{}.Verify(src)
	c.slot.StoreSequence(c.slot.LoadSequence() + 1)
	return v, err
}

func TestTornReadDetected(t *testing.T) {
	slot := newSlot(t)
	codec := racingCodec{slot: slot}
	w := pubsub.NewWriter[string](slot, codec)
	r := pubsub.NewReader[string](slot, codec)

	require.NoError(t, w.Publish("before-race"))

	_, status, err := r.ReadLatest()
	require.NoError(t, err)
	require.Equal(t, pubsub.Torn, status)
}

// racingFailingCodec bumps the slot's sequence during Verify and then
// fails verification, simulating a reader observing a payload mid-write
// (e.g. a field that looked structurally invalid while the writer was
// still encoding) racing a concurrent publish.
type racingFailingCodec struct {
	slot *shmslot.Slot
}

func (c racingFailingCodec) Encode(v string, dst []byte) (int, error) {
	return lengthPrefixedString{}.Encode(v, dst)
}

func (c racingFailingCodec) Verify(src []byte) (string, error) {
	c.slot.StoreSequence(c.slot.LoadSequence() + 1)
	return "", pubsub.ErrInvalidEncoding
}

func TestTornReadTakesPrecedenceOverVerifyFailure(t *testing.T) {
	slot := newSlot(t)
	codec := racingFailingCodec{slot: slot}
	w := pubsub.NewWriter[string](slot, codec)
	r := pubsub.NewReader[string](slot, codec)

	require.NoError(t, w.Publish("before-race"))

	_, status, err := r.ReadLatest()
	require.NoError(t, err)
	require.Equal(t, pubsub.Torn, status)
}

func TestOversizedPublishLeavesPriorValueReadable(t *testing.T) {
	slot := newSlot(t)
	w := pubsub.NewWriter[string](slot, lengthPrefixedString{})
	r := pubsub.NewReader[string](slot, lengthPrefixedString{})

	require.NoError(t, w.Publish("fits"))

	big := make([]byte, 1024)
	err := w.Publish(string(big))
	require.ErrorIs(t, err, pubsub.ErrPayloadTooLarge)

	v, status, err := r.ReadLatest()
	require.NoError(t, err)
	require.Equal(t, pubsub.OK, status)
	require.Equal(t, "fits", v)
}
