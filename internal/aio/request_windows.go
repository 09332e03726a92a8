//go:build windows

package aio

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// The overlapped record is the first field of Request, so the pointer the
// completion port hands back is also a pointer to the Request.
type sysRequest struct {
	overlapped windows.Overlapped
}

func (r *Request) Overlapped() *windows.Overlapped {
	return &r.sys.overlapped
}

// RequestOf recovers the request from an overlapped record dequeued from a
// completion port. Only valid for records obtained from Request.Overlapped.
func RequestOf(o *windows.Overlapped) *Request {
	return (*Request)(unsafe.Pointer(o))
}

func (c OpCode) call() string {
	switch c {
	case OpWrite:
		return "WriteFile"
	case OpRead:
		return "ReadFile"
	}
	return "PostQueuedCompletionStatus"
}

func isAbort(errno syscall.Errno) bool {
	return errno == windows.ERROR_OPERATION_ABORTED
}
