package aio

import (
	"errors"
	"syscall"
)

var (
	ErrCanceled   = errors.New("aio: operation canceled")
	ErrClosed     = errors.New("aio: dispatcher closed")
	ErrInvalidArg = errors.New("aio: invalid argument")
)

// OpError is the error every operation reports, whether the OS rejected the
// request up front, failed it later, or it lost to a cancellation.
type OpError struct {
	Op    string        // "read", "write", "set file size", "size"
	Call  string        // OS call that failed, empty when none was made
	Code  syscall.Errno // 0 when the failure did not come from the OS
	Err   error
	Cause error // context cause for canceled operations
}

func (e *OpError) Error() string {
	s := e.Op
	if e.Call != "" {
		s += ": " + e.Call
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	if e.Cause != nil {
		s += " (" + e.Cause.Error() + ")"
	}
	return s
}

func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Temporary mirrors the errno's classification so callers can decide on a
// retry themselves.
func (e *OpError) Temporary() bool {
	return e.Code != 0 && e.Code.Temporary()
}

func NewOpError(op, call string, errno syscall.Errno) *OpError {
	return &OpError{Op: op, Call: call, Code: errno, Err: errno}
}

func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// Errno extracts the platform error code, if err carries one.
func Errno(err error) (syscall.Errno, bool) {
	var opErr *OpError
	if errors.As(err, &opErr) && opErr.Code != 0 {
		return opErr.Code, true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}

func issueError(op OpCode, err error) error {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr
	}
	e := &OpError{Op: op.String(), Err: err}
	if errno, ok := err.(syscall.Errno); ok {
		e.Code = errno
	}
	return e
}
