//go:build unix

package file

import (
	"syscall"

	"awaitio/internal/aio"

	"golang.org/x/sys/unix"
)

const errInvalid = unix.EINVAL

func setSize(fd uintptr, size int64) error {
	for {
		err := unix.Ftruncate(int(fd), size)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return aio.NewOpError(opSetSize, "ftruncate", toErrno(err))
		}
		return nil
	}
}

func size(fd uintptr) (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(fd), &st); err != nil {
		return 0, aio.NewOpError(opSize, "fstat", toErrno(err))
	}
	return st.Size, nil
}

func toErrno(err error) syscall.Errno {
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	return unix.EIO
}
