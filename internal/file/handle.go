//go:build unix || windows

package file

import (
	"fmt"
	"sync"
)

// OpenMode decides what Open does when the file does or does not exist.
type OpenMode uint8

const (
	OpenExisting     OpenMode = iota // fail if missing
	OpenAlways                       // create if missing
	CreateNew                        // fail if present
	CreateAlways                     // create or truncate
	TruncateExisting                 // truncate, fail if missing
)

func (m OpenMode) String() string {
	switch m {
	case OpenExisting:
		return "OpenExisting"
	case OpenAlways:
		return "OpenAlways"
	case CreateNew:
		return "CreateNew"
	case CreateAlways:
		return "CreateAlways"
	case TruncateExisting:
		return "TruncateExisting"
	}
	return fmt.Sprintf("OpenMode(%d)", uint8(m))
}

type Buffering uint8

const (
	BufferingDefault Buffering = iota
	// Unbuffered bypasses the page cache. Buffers, offsets and lengths must
	// then be aligned, see AllocAligned.
	Unbuffered
	WriteThrough
)

func (b Buffering) String() string {
	switch b {
	case BufferingDefault:
		return "default"
	case Unbuffered:
		return "unbuffered"
	case WriteThrough:
		return "write-through"
	}
	return fmt.Sprintf("Buffering(%d)", uint8(b))
}

const invalidFd = ^uintptr(0)

// Handle owns a native file descriptor (a HANDLE on windows) opened for
// asynchronous, positional I/O.
type Handle struct {
	name string

	mu     sync.Mutex
	fd     uintptr
	closed bool
}

// NewHandle adopts fd. The Handle closes it.
func NewHandle(fd uintptr, name string) *Handle {
	return &Handle{fd: fd, name: name}
}

func (h *Handle) Name() string {
	return h.name
}

// Fd returns the descriptor, or an invalid one once the handle is closed so
// that late calls fail in the OS instead of hitting a reused descriptor.
func (h *Handle) Fd() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return invalidFd
	}
	return h.fd
}

// Close releases the descriptor. Only the first call reaches the OS.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return closeFd(h.fd)
}

func (h *Handle) String() string {
	return fmt.Sprintf("Handle | Name: %q, Fd: 0x%x", h.name, h.Fd())
}
