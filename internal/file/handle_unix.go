//go:build unix

package file

import (
	"log/slog"
	"os"

	"awaitio/internal/iomgr"

	"golang.org/x/sys/unix"
)

func openFlags(mode OpenMode, buf Buffering) int {
	flags := unix.O_RDWR | unix.O_CLOEXEC
	switch mode {
	case OpenAlways:
		flags |= unix.O_CREAT
	case CreateNew:
		flags |= unix.O_CREAT | unix.O_EXCL
	case CreateAlways:
		flags |= unix.O_CREAT | unix.O_TRUNC
	case TruncateExisting:
		flags |= unix.O_TRUNC
	}
	switch buf {
	case Unbuffered:
		flags |= oDirect
	case WriteThrough:
		flags |= oDsync
	}
	return flags
}

// Open opens path for reading and writing.
func Open(path string, mode OpenMode, buf Buffering) (*Handle, error) {
	flags := openFlags(mode, buf)
	for {
		fd, err := unix.Open(path, flags, 0o644)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, &os.PathError{Op: "open", Path: path, Err: err}
		}
		slog.Debug("Open", "path", path, "mode", mode, "buffering", buf, "fd", fd)
		return NewHandle(uintptr(fd), path), nil
	}
}

func closeFd(fd uintptr) error {
	if err := unix.Close(int(fd)); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

// AllocAligned returns size bytes of page aligned memory outside the Go heap.
// Release it with FreeAligned.
func AllocAligned(size int) ([]byte, error) {
	return iomgr.AllocSlab(size)
}

func FreeAligned(b []byte) error {
	return iomgr.DeallocSlab(b)
}
