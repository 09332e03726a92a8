//go:build !windows

package aio

import "syscall"

// Both the ring and the worker pool perform positional transfers, so failures
// are reported under the pread/pwrite names.
func (c OpCode) call() string {
	switch c {
	case OpWrite:
		return "pwrite"
	case OpRead:
		return "pread"
	}
	return "nop"
}

func isAbort(errno syscall.Errno) bool {
	return errno == syscall.ECANCELED || errno == syscall.EINTR
}
