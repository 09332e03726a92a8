package file

import (
	"syscall"

	"awaitio/internal/aio"

	"golang.org/x/sys/windows"
)

const errInvalid = windows.ERROR_INVALID_PARAMETER

// The file pointer moved here is never used for I/O: every request carries
// its own offset in the overlapped.
func setSize(fd uintptr, size int64) error {
	h := windows.Handle(fd)
	if _, err := windows.Seek(h, size, 0); err != nil {
		return aio.NewOpError(opSetSize, "SetFilePointerEx", toErrno(err))
	}
	if err := windows.SetEndOfFile(h); err != nil {
		return aio.NewOpError(opSetSize, "SetEndOfFile", toErrno(err))
	}
	return nil
}

func size(fd uintptr) (int64, error) {
	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(windows.Handle(fd), &info); err != nil {
		return 0, aio.NewOpError(opSize, "GetFileInformationByHandle", toErrno(err))
	}
	return int64(info.FileSizeHigh)<<32 | int64(info.FileSizeLow), nil
}

func toErrno(err error) syscall.Errno {
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	return windows.ERROR_GEN_FAILURE
}
