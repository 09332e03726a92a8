package file

import (
	"log/slog"
	"os"

	"awaitio/internal/iomgr"

	"golang.org/x/sys/windows"
)

func disposition(mode OpenMode) uint32 {
	switch mode {
	case OpenAlways:
		return windows.OPEN_ALWAYS
	case CreateNew:
		return windows.CREATE_NEW
	case CreateAlways:
		return windows.CREATE_ALWAYS
	case TruncateExisting:
		return windows.TRUNCATE_EXISTING
	}
	return windows.OPEN_EXISTING
}

// Open opens path for reading and writing, with FILE_FLAG_OVERLAPPED so the
// handle can be associated with a completion port.
func Open(path string, mode OpenMode, buf Buffering) (*Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}

	attrs := uint32(windows.FILE_ATTRIBUTE_NORMAL | windows.FILE_FLAG_OVERLAPPED)
	switch buf {
	case Unbuffered:
		attrs |= windows.FILE_FLAG_NO_BUFFERING
	case WriteThrough:
		attrs |= windows.FILE_FLAG_WRITE_THROUGH
	}

	h, err := windows.CreateFile(p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		disposition(mode),
		attrs,
		0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	slog.Debug("Open", "path", path, "mode", mode, "buffering", buf, "handle", h)
	return NewHandle(uintptr(h), path), nil
}

func closeFd(fd uintptr) error {
	if err := windows.CloseHandle(windows.Handle(fd)); err != nil {
		return os.NewSyscallError("CloseHandle", err)
	}
	return nil
}

func AllocAligned(size int) ([]byte, error) {
	return iomgr.AllocSlab(size)
}

func FreeAligned(b []byte) error {
	return iomgr.DeallocSlab(b)
}
