//go:build linux

package signalqueue

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultCapacity is the default burst capacity (spec §6: signal_queue_capacity, default 10).
const DefaultCapacity = 10

const msgSize = 1 // one-byte tokens

// mqAttr mirrors the kernel's struct mq_attr (include/uapi/linux/mqueue.h):
// four __kernel_long_t fields plus four reserved, 64 bytes on LP64.
type mqAttr struct {
	Flags    int64
	Maxmsg   int64
	Msgsize  int64
	Curmsgs  int64
	reserved [4]int64
}

// Queue is a named kernel message queue used as a point-to-point
// wake-up channel. Fan-out to multiple consumers is implemented by a
// producer holding one Queue per consumer and posting to each.
type Queue struct {
	fd   int
	name string
}

// Create unlinks any prior queue of this name and creates a fresh one
// with the given capacity (spec §3: "create unlinks any prior name and
// creates fresh").
func Create(name string, capacity int) (*Queue, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	_ = mqUnlink(name) // best effort, absence is not an error

	attr := mqAttr{Maxmsg: int64(capacity), Msgsize: msgSize}
	fd, err := mqOpen(name, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0o666, &attr)
	if err != nil {
		return nil, classifyErr(name, err)
	}
	return &Queue{fd: fd, name: name}, nil
}

// Open attaches to an existing named queue. It fails with KindNotFound
// if the queue has not been created yet.
func Open(name string) (*Queue, error) {
	fd, err := mqOpen(name, unix.O_RDWR, 0, nil)
	if err != nil {
		return nil, classifyErr(name, err)
	}
	return &Queue{fd: fd, name: name}, nil
}

func classifyErr(name string, err error) error {
	switch err {
	case unix.EEXIST:
		return &SetupError{Kind: KindAlreadyExists, Name: name, Err: err}
	case unix.ENOENT:
		return &SetupError{Kind: KindNotFound, Name: name, Err: err}
	default:
		return &SetupError{Kind: KindNotFound, Name: name, Err: err}
	}
}

// Post enqueues one token, never blocking the caller. On overflow it
// returns ErrOverflow; callers log at debug level and discard (spec §4.4).
func (q *Queue) Post() error {
	now := unix.NsecToTimespec(time.Now().UnixNano())
	err := mqTimedsend(q.fd, []byte{1}, 0, &now)
	if err == unix.ETIMEDOUT || err == unix.EAGAIN {
		return ErrOverflow
	}
	return err
}

// Wait blocks until a token is available, transparently retrying on
// EINTR (spec §4.4/§6).
func (q *Queue) Wait() error {
	buf := make([]byte, msgSize)
	for {
		_, err := mqTimedreceive(q.fd, buf, nil)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

// TryWait dequeues one token without blocking. It returns true if a
// token was consumed, false if the queue was empty.
func (q *Queue) TryWait() (bool, error) {
	buf := make([]byte, msgSize)
	now := unix.NsecToTimespec(time.Now().UnixNano())
	_, err := mqTimedreceive(q.fd, buf, &now)
	switch err {
	case nil:
		return true, nil
	case unix.ETIMEDOUT, unix.EAGAIN:
		return false, nil
	case unix.EINTR:
		return q.TryWait()
	default:
		return false, err
	}
}

// Drain repeatedly calls TryWait until the queue is empty, returning the
// number of tokens consumed. It is idempotent: calling it again on an
// empty queue returns 0 until another Post occurs.
func (q *Queue) Drain() (int, error) {
	n := 0
	for {
		ok, err := q.TryWait()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// Close releases the descriptor. The queue itself (and any buffered
// tokens) persists until unlinked or the host restarts the tmpfs-backed
// mqueue filesystem.
func (q *Queue) Close() error {
	return unix.Close(q.fd)
}

func mqOpen(name string, oflag int, mode uint32, attr *mqAttr) (int, error) {
	namePtr, err := unix.BytePtrFromString(name)
	if err != nil {
		return -1, err
	}
	r1, _, errno := unix.Syscall6(unix.SYS_MQ_OPEN,
		uintptr(unsafe.Pointer(namePtr)), uintptr(oflag), uintptr(mode), uintptr(unsafe.Pointer(attr)), 0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(r1), nil
}

func mqUnlink(name string) error {
	namePtr, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_MQ_UNLINK, uintptr(unsafe.Pointer(namePtr)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func mqTimedsend(fd int, msg []byte, prio uint, timeout *unix.Timespec) error {
	var msgPtr *byte
	if len(msg) > 0 {
		msgPtr = &msg[0]
	}
	_, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDSEND,
		uintptr(fd), uintptr(unsafe.Pointer(msgPtr)), uintptr(len(msg)), uintptr(prio), uintptr(unsafe.Pointer(timeout)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func mqTimedreceive(fd int, msg []byte, timeout *unix.Timespec) (int, error) {
	var msgPtr *byte
	if len(msg) > 0 {
		msgPtr = &msg[0]
	}
	var prio uint32
	r1, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDRECEIVE,
		uintptr(fd), uintptr(unsafe.Pointer(msgPtr)), uintptr(len(msg)), uintptr(unsafe.Pointer(&prio)), uintptr(unsafe.Pointer(timeout)), 0)
	if errno != 0 {
		return 0, errno
	}
	return int(r1), nil
}
