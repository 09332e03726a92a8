//go:build windows

package iomgr

import (
	"context"
	"log/slog"
	"sync"
	"syscall"

	"awaitio/internal/aio"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/windows"
)

// Port is the completion-port dispatcher. Handles are associated with one
// shared port and worker goroutines dequeue completions from it.
//
// Handles are switched to FILE_SKIP_COMPLETION_PORT_ON_SUCCESS, so a call
// that finishes synchronously queues no packet and is completed inline by
// Issue.
type Port struct {
	log  *slog.Logger
	opts options
	port windows.Handle
	wg   sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	pending  map[*aio.Request]struct{}
	inflight sync.WaitGroup
}

func CreatePort(opts ...Option) (*Port, error) {
	o := resolve(opts)
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, uint32(o.workers))
	if err != nil {
		return nil, setupError(ErrPortSetup, "create", "CreateIoCompletionPort", err)
	}

	p := &Port{
		log:     slog.With("src", "Port"),
		opts:    o,
		port:    port,
		pending: make(map[*aio.Request]struct{}),
	}
	p.log.Debug("CreatePort", "workers", o.workers)
	for range o.workers {
		p.wg.Add(1)
		go p.worker()
	}
	return p, nil
}

// Associate binds a handle opened with FILE_FLAG_OVERLAPPED to the port.
func (p *Port) Associate(fd uintptr) error {
	h := windows.Handle(fd)
	if _, err := windows.CreateIoCompletionPort(h, p.port, 0, 0); err != nil {
		return setupError(ErrPortSetup, "associate", "CreateIoCompletionPort", err)
	}
	err := windows.SetFileCompletionNotificationModes(h,
		windows.FILE_SKIP_COMPLETION_PORT_ON_SUCCESS|windows.FILE_SKIP_SET_EVENT_ON_HANDLE)
	if err != nil {
		return setupError(ErrPortSetup, "associate", "SetFileCompletionNotificationModes", err)
	}
	return nil
}

// Issue never waits: the OS either accepts the call or fails it.
func (p *Port) Issue(_ context.Context, r *aio.Request) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return aio.ErrClosed
	}
	p.pending[r] = struct{}{}
	p.inflight.Add(1)
	p.mu.Unlock()

	o := r.Overlapped()
	*o = windows.Overlapped{}
	o.Offset = uint32(r.Off)
	o.OffsetHigh = uint32(r.Off >> 32)

	var n uint32
	var err error
	switch r.Opcode {
	case aio.OpWrite:
		err = windows.WriteFile(windows.Handle(r.Fd), r.Buf, &n, o)
	case aio.OpRead:
		err = windows.ReadFile(windows.Handle(r.Fd), r.Buf, &n, o)
	}

	switch {
	case err == nil:
		// fast path: no packet will be queued
		p.done(r, int(n), 0)
		return nil
	case errors.Is(err, windows.ERROR_IO_PENDING):
		return nil
	case errors.Is(err, windows.ERROR_HANDLE_EOF):
		p.done(r, 0, 0)
		return nil
	}

	p.forget(r)
	errno, ok := err.(syscall.Errno)
	if !ok {
		errno = windows.ERROR_GEN_FAILURE
	}
	return aio.NewOpError(r.Opcode.String(), callName(r.Opcode), errno)
}

// Cancel asks the OS to abort the request. ERROR_NOT_FOUND means its
// completion is already on the way.
func (p *Port) Cancel(r *aio.Request) error {
	err := windows.CancelIoEx(windows.Handle(r.Fd), r.Overlapped())
	if err != nil && !errors.Is(err, windows.ERROR_NOT_FOUND) {
		p.log.Warn("CancelIoEx", "req", r, "err", err)
		return err
	}
	return nil
}

// Close cancels everything still pending, waits for those completions, then
// stops the workers and closes the port.
func (p *Port) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for r := range p.pending {
		_ = windows.CancelIoEx(windows.Handle(r.Fd), r.Overlapped())
	}
	p.mu.Unlock()

	p.inflight.Wait()
	for range p.opts.workers {
		_ = windows.PostQueuedCompletionStatus(p.port, 0, 0, nil)
	}
	p.wg.Wait()
	return windows.CloseHandle(p.port)
}

func (p *Port) forget(r *aio.Request) {
	p.mu.Lock()
	delete(p.pending, r)
	p.mu.Unlock()
	p.inflight.Done()
}

func (p *Port) done(r *aio.Request, n int, errno syscall.Errno) {
	p.forget(r)
	r.Complete(n, errno)
}

func (p *Port) worker() {
	defer p.wg.Done()
	for {
		var qty uint32
		var key uintptr
		var o *windows.Overlapped
		err := windows.GetQueuedCompletionStatus(p.port, &qty, &key, &o, windows.INFINITE)
		if o == nil {
			// PostQueuedCompletionStatus from Close, or the port itself failed
			if err != nil {
				p.log.Error("GetQueuedCompletionStatus", "err", err)
			}
			return
		}

		r := aio.RequestOf(o)
		var errno syscall.Errno
		if err != nil {
			var ok bool
			if errno, ok = err.(syscall.Errno); !ok {
				errno = windows.ERROR_GEN_FAILURE
			}
			if errno == windows.ERROR_HANDLE_EOF {
				errno = 0
			}
		}
		p.done(r, int(qty), errno)
	}
}

func callName(c aio.OpCode) string {
	if c == aio.OpRead {
		return "ReadFile"
	}
	return "WriteFile"
}
