// Package controlbyte implements the one-byte atomic shared-memory
// control region (spec §3/§4.1): no header, no sequence, just a single
// byte read/written atomically so the controller's output mode is
// naturally level-triggered.
package controlbyte

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/edge-sentry/ipcbridge/internal/shmslot"
)

// Mode is the producer-facing output of the sentry state machine.
type Mode uint8

const (
	Standby Mode = 0
	Alarmed Mode = 1
)

func (m Mode) String() string {
	if m == Alarmed {
		return "ALARMED"
	}
	return "STANDBY"
}

// ControlByte is a single shared byte, mapped either read-write (for the
// controller, its sole writer) or read-only (for the producer and any
// other reader).
type ControlByte struct {
	data []byte
}

// CreateOrOpen opens or creates the one-byte region read-write. A freshly
// created region starts at Standby.
func CreateOrOpen(path string) (*ControlByte, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0o666)
	if err != nil {
		return nil, wrapErr(path, err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, &shmslot.SetupError{Kind: shmslot.KindMmapFailed, Path: path, Err: err}
	}
	if st.Size == 0 {
		if err := unix.Ftruncate(fd, 1); err != nil {
			return nil, &shmslot.SetupError{Kind: shmslot.KindMmapFailed, Path: path, Err: errors.Wrap(err, "ftruncate")}
		}
	}

	data, err := unix.Mmap(fd, 0, 1, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &shmslot.SetupError{Kind: shmslot.KindMmapFailed, Path: path, Err: errors.Wrap(err, "mmap")}
	}
	return &ControlByte{data: data}, nil
}

// OpenReadOnly attaches to an existing region for reading.
func OpenReadOnly(path string) (*ControlByte, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, wrapErr(path, err)
	}
	defer unix.Close(fd)

	data, err := unix.Mmap(fd, 0, 1, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, &shmslot.SetupError{Kind: shmslot.KindMmapFailed, Path: path, Err: errors.Wrap(err, "mmap")}
	}
	return &ControlByte{data: data}, nil
}

func wrapErr(path string, err error) error {
	switch err {
	case unix.ENOENT:
		return &shmslot.SetupError{Kind: shmslot.KindNotFound, Path: path, Err: err}
	case unix.EACCES:
		return &shmslot.SetupError{Kind: shmslot.KindPermissionDenied, Path: path, Err: err}
	default:
		return &shmslot.SetupError{Kind: shmslot.KindMmapFailed, Path: path, Err: err}
	}
}

// Load reads the mode byte. A lone aligned byte load/store never tears on
// any architecture Go targets, so no sync/atomic primitive is needed for
// it; the coordination this protects is cross-process, not cross-goroutine.
func (c *ControlByte) Load() Mode {
	return Mode(c.data[0])
}

// Store writes the mode byte. Only the controller (the region's sole
// writer) should call this.
func (c *ControlByte) Store(m Mode) {
	c.data[0] = byte(m)
}

// Close unmaps the region.
func (c *ControlByte) Close() error {
	if c.data == nil {
		return nil
	}
	err := unix.Munmap(c.data)
	c.data = nil
	return err
}
