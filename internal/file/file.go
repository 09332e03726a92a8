//go:build unix || windows

package file

import (
	"context"

	"awaitio/internal/aio"
)

// associator is implemented by dispatchers that need a handle bound to them
// before requests against it can complete there.
type associator interface {
	Associate(fd uintptr) error
}

// File pairs a handle with the dispatcher its operations are issued against.
// The factories only build operations; nothing is issued until the operation
// is started or awaited.
type File struct {
	h *Handle
	d aio.Dispatcher
}

func New(h *Handle, d aio.Dispatcher) (*File, error) {
	if h == nil || d == nil {
		return nil, &aio.OpError{Op: "new file", Err: aio.ErrInvalidArg}
	}
	if a, ok := d.(associator); ok {
		if err := a.Associate(h.Fd()); err != nil {
			return nil, err
		}
	}
	return &File{h: h, d: d}, nil
}

func (f *File) Handle() *Handle {
	return f.h
}

// Write builds an operation writing b at off. b must stay untouched until it
// completes.
func (f *File) Write(off int64, b []byte) *aio.Operation {
	return aio.NewOperation(f.d, aio.OpWrite, f.h.Fd(), off, b)
}

// WriteContext is Write that gives up when ctx is done.
func (f *File) WriteContext(ctx context.Context, off int64, b []byte) *aio.CancellableOperation {
	return aio.NewCancellableOperation(ctx, f.d, aio.OpWrite, f.h.Fd(), off, b)
}

func (f *File) Read(off int64, b []byte) *aio.Operation {
	return aio.NewOperation(f.d, aio.OpRead, f.h.Fd(), off, b)
}

func (f *File) ReadContext(ctx context.Context, off int64, b []byte) *aio.CancellableOperation {
	return aio.NewCancellableOperation(ctx, f.d, aio.OpRead, f.h.Fd(), off, b)
}

// SetSize extends or truncates the file to size bytes. It blocks.
func (f *File) SetSize(size int64) error {
	if size < 0 {
		return aio.NewOpError(opSetSize, "", errInvalid)
	}
	return setSize(f.h.Fd(), size)
}

// Size blocks.
func (f *File) Size() (int64, error) {
	return size(f.h.Fd())
}

const (
	opSetSize = "set file size"
	opSize    = "size"
)
