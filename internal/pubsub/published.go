// Package pubsub implements the atomic single-slot publication protocol:
// Release-store publish, double-sequence Acquire-load read, torn-read
// detection. It is generic over a payload codec so frame and detection
// buffers can share one implementation (spec §4.3's PublishedSlot).
//
// The sequencing technique mirrors a single-writer LMAX-style disruptor
// cursor (claim, write, Release-publish) collapsed to one slot: instead of
// claiming a ring index and spin-waiting a consumer cursor, there is
// exactly one slot and the only coordination needed is the torn-read
// double-check on the reader side.
package pubsub

import (
	"github.com/pkg/errors"

	"github.com/edge-sentry/ipcbridge/internal/shmslot"
)

// ErrPayloadTooLarge is returned by a Codec's Encode when the value would
// not fit in the slot's payload capacity.
var ErrPayloadTooLarge = errors.New("pubsub: payload too large")

// ErrInvalidEncoding is returned by a Codec's Verify when the payload
// bytes fail structural verification.
var ErrInvalidEncoding = errors.New("pubsub: invalid encoding")

// Codec converts a typed value to and from the slot's payload bytes.
// Encode must fail with ErrPayloadTooLarge (or a wrapped form of it) if
// the encoded length would exceed len(dst). Verify must perform a
// structural check before returning any field so malformed payloads
// (e.g. from a writer that crashed mid-encode) never escape as
// out-of-bounds reads.
type Codec[T any] interface {
	Encode(v T, dst []byte) (n int, err error)
	Verify(src []byte) (T, error)
}

// Writer publishes values of type T into a slot it owns exclusively.
// There must be exactly one Writer per slot (spec §4.2/§5).
type Writer[T any] struct {
	slot  *shmslot.Slot
	codec Codec[T]
}

// NewWriter wraps an already-created slot for publication.
func NewWriter[T any](slot *shmslot.Slot, codec Codec[T]) *Writer[T] {
	return &Writer[T]{slot: slot, codec: codec}
}

// Publish serializes v into the slot's payload in place, then performs the
// Release-ordered sequence increment that is the sole publication act. On
// ErrPayloadTooLarge the sequence is left unchanged, so the previous
// publication remains the one any reader observes.
func (w *Writer[T]) Publish(v T) error {
	_, err := w.codec.Encode(v, w.slot.Payload())
	if err != nil {
		return err
	}
	w.slot.StoreSequence(w.slot.LoadSequence() + 1)
	return nil
}

// ReadStatus classifies the outcome of a single Reader.read call so
// callers can distinguish "nothing published yet", "torn read" (retry on
// next signal), "already seen" (strict-increment policy), and "ok".
type ReadStatus int

const (
	NoData ReadStatus = iota
	Torn
	NotNew
	OK
)

// Reader reads the newest committed value from a slot, detecting torn
// reads per spec §4.2. A Reader is not safe for concurrent use by
// multiple goroutines; each consumer process/goroutine should own one.
type Reader[T any] struct {
	slot         *shmslot.Slot
	codec        Codec[T]
	lastSeen     uint64
	skipFirst    bool
	skippedFirst bool
}

// ReaderOption configures a Reader at construction.
type ReaderOption func(*readerOpts)

type readerOpts struct {
	skipFirstObservation bool
}

// SkipFirstObservation implements the spec's open-question policy for
// attaching after a producer restart: the slot may still hold stale
// content with S > 0 from a previous process lifetime. When set, the
// first successful read after construction is discarded (its sequence is
// still recorded as lastSeen) so the caller never acts on a frame that
// predates its own attach.
func SkipFirstObservation() ReaderOption {
	return func(o *readerOpts) { o.skipFirstObservation = true }
}

// NewReader wraps an opened slot for reading.
func NewReader[T any](slot *shmslot.Slot, codec Codec[T], opts ...ReaderOption) *Reader[T] {
	var o readerOpts
	for _, fn := range opts {
		fn(&o)
	}
	return &Reader[T]{slot: slot, codec: codec, skipFirst: o.skipFirstObservation}
}

// ReadLatest returns the newest available payload regardless of whether
// it was already seen. This is the policy DrainConsumer uses: always
// process the newest frame.
func (r *Reader[T]) ReadLatest() (T, ReadStatus, error) {
	return r.read(false)
}

// ReadNext returns the payload only if its sequence is strictly newer
// than the last one this Reader returned. This is the policy
// StreamConsumer uses: one signal, one (strictly increasing) read.
func (r *Reader[T]) ReadNext() (T, ReadStatus, error) {
	return r.read(true)
}

// LastSeen reports the sequence number of the last committed read, or 0
// if none has occurred yet.
func (r *Reader[T]) LastSeen() uint64 { return r.lastSeen }

func (r *Reader[T]) read(requireNew bool) (T, ReadStatus, error) {
	var zero T

	s1 := r.slot.LoadSequence()
	if s1 == 0 {
		return zero, NoData, nil
	}
	if requireNew && s1 == r.lastSeen {
		return zero, NotNew, nil
	}

	v, verifyErr := r.codec.Verify(r.slot.PayloadView())

	s2 := r.slot.LoadSequence()
	if s1 != s2 {
		return zero, Torn, nil
	}
	if verifyErr != nil {
		return zero, NoData, verifyErr
	}

	r.lastSeen = s1
	if r.skipFirst && !r.skippedFirst {
		r.skippedFirst = true
		return zero, NotNew, nil
	}

	return v, OK, nil
}
