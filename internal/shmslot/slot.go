// Package shmslot implements the fixed-size shared-memory region described
// in the bridge's data model: an 8-byte atomic sequence header at offset 0
// followed by a payload area, backed by a file under a host-managed tmpfs
// mount and mapped with MAP_SHARED.
package shmslot

import (
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// HeaderSize is the width of the atomic sequence header at offset 0.
const HeaderSize = 8

// Kind classifies setup failures so callers can map them to the exit
// codes in the external interface (fatal, exit code 1).
type Kind int

const (
	_ Kind = iota
	KindNotFound
	KindPermissionDenied
	KindSizeMismatch
	KindMmapFailed
)

// SetupError is the non-retriable error class returned by Create/Open.
type SetupError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	return errors.Wrapf(e.Err, "shmslot: %s", e.Path).Error()
}

func (e *SetupError) Unwrap() error { return e.Err }

// Slot is a single process's mapping of a shared-memory region. The file
// descriptor is closed as soon as the mapping is established; Close
// releases the mapping, which survives only as long as this Slot value is
// open.
type Slot struct {
	path     string
	data     []byte
	readOnly bool
}

// CreateOrOpen opens an existing file of size >= size read/write, or
// creates one of exactly size with the header cleared to zero, then mmaps
// it shared. The caller is the slot's sole writer.
func CreateOrOpen(path string, size int) (*Slot, error) {
	if size < HeaderSize {
		return nil, &SetupError{Kind: KindSizeMismatch, Path: path, Err: errors.Errorf("size %d smaller than header %d", size, HeaderSize)}
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0o666)
	if err != nil {
		return nil, wrapOpenErr(path, err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, &SetupError{Kind: KindMmapFailed, Path: path, Err: err}
	}

	if st.Size == 0 {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			return nil, &SetupError{Kind: KindMmapFailed, Path: path, Err: errors.Wrap(err, "ftruncate")}
		}
	} else if int(st.Size) < size {
		return nil, &SetupError{Kind: KindSizeMismatch, Path: path, Err: errors.Errorf("existing file is %d bytes, want >= %d", st.Size, size)}
	} else {
		size = int(st.Size)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &SetupError{Kind: KindMmapFailed, Path: path, Err: errors.Wrap(err, "mmap")}
	}

	return &Slot{path: path, data: data}, nil
}

// OpenReadOnly opens an existing region and mmaps it read-only. It fails
// with KindNotFound if the file is absent.
func OpenReadOnly(path string) (*Slot, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, wrapOpenErr(path, err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, &SetupError{Kind: KindMmapFailed, Path: path, Err: err}
	}
	if st.Size < HeaderSize {
		return nil, &SetupError{Kind: KindSizeMismatch, Path: path, Err: errors.Errorf("file is %d bytes, smaller than header %d", st.Size, HeaderSize)}
	}

	data, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, &SetupError{Kind: KindMmapFailed, Path: path, Err: errors.Wrap(err, "mmap")}
	}

	return &Slot{path: path, data: data, readOnly: true}, nil
}

func wrapOpenErr(path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist) || err == unix.ENOENT:
		return &SetupError{Kind: KindNotFound, Path: path, Err: err}
	case errors.Is(err, os.ErrPermission) || err == unix.EACCES:
		return &SetupError{Kind: KindPermissionDenied, Path: path, Err: err}
	default:
		return &SetupError{Kind: KindMmapFailed, Path: path, Err: err}
	}
}

// Path returns the backing file path.
func (s *Slot) Path() string { return s.path }

// Size returns the total mapped region size, header included.
func (s *Slot) Size() int { return len(s.data) }

// headerPtr returns the 8-byte-aligned atomic header. mmap's base address
// is page-aligned (POSIX), so offset 0 is 8-byte aligned.
func (s *Slot) headerPtr() *uint64 {
	return (*uint64)(unsafe.Pointer(&s.data[0]))
}

// LoadSequence performs an Acquire load of the sequence header.
func (s *Slot) LoadSequence() uint64 {
	return atomic.LoadUint64(s.headerPtr())
}

// StoreSequence performs a Release store of the sequence header. Callers
// must not call this on a read-only slot.
func (s *Slot) StoreSequence(v uint64) {
	atomic.StoreUint64(s.headerPtr(), v)
}

// Payload returns the mutable payload area for writers.
func (s *Slot) Payload() []byte {
	return s.data[HeaderSize:]
}

// PayloadView returns the payload area. Mutating it through a read-only
// slot's mapping is undefined at the OS level; callers that opened
// read-only must treat this as read-only even though Go's type system
// does not enforce it for a plain []byte.
func (s *Slot) PayloadView() []byte {
	return s.data[HeaderSize:]
}

// Close unmaps the region and releases the Slot. The underlying file and
// its contents are unaffected.
func (s *Slot) Close() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	return err
}
