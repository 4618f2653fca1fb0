// Package signalqueue wraps named POSIX message queues as the signalling
// fabric described in spec §4.4: a tokenized binary semaphore with a
// small burst tolerance, used purely as a wake-up hint. Correctness never
// depends on a particular post being received; only the slot's atomic
// sequence (internal/pubsub) does that.
package signalqueue

import "github.com/pkg/errors"

// Kind classifies signal queue failures.
type Kind int

const (
	_ Kind = iota
	KindAlreadyExists
	KindNotFound
	KindUnsupported
)

// SetupError is the non-retriable error class from Create/Open.
type SetupError struct {
	Kind Kind
	Name string
	Err  error
}

func (e *SetupError) Error() string {
	return errors.Wrapf(e.Err, "signalqueue: %s", e.Name).Error()
}

func (e *SetupError) Unwrap() error { return e.Err }

// ErrOverflow is returned by Post when the queue is full. It is a soft,
// expected condition (spec §4.4/§7): the caller logs at debug level and
// discards, never treating it as a hard error.
var ErrOverflow = errors.New("signalqueue: overflow, token dropped")
