package aio

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/negrel/assert"
)

type OpCode uint16

const (
	OpNop OpCode = iota
	OpWrite
	OpRead
)

func (c OpCode) String() string {
	switch c {
	case OpNop:
		return "nop"
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	}
	return fmt.Sprintf("OpCode(%d)", uint16(c))
}

// Largest transfer a single request may carry. io_uring takes a u32 length and
// ReadFile/WriteFile take a DWORD.
const MaxTransfer = math.MaxUint32

// Dispatcher is the completion source requests are issued against.
//
// Issue either fails synchronously (and no completion follows) or guarantees
// exactly one later call to r.Complete, possibly before Issue returns. If it
// has to wait for room it gives up with ctx.Err() once ctx is done.
// Cancel is advisory and never waits for room: the request is still
// completed exactly once.
type Dispatcher interface {
	Issue(ctx context.Context, r *Request) error
	Cancel(r *Request) error
}

type completer interface {
	complete(n int, errno syscall.Errno)
}

// Request is the descriptor for one outstanding call. It is embedded by value
// in the operation that owns it and must not be copied or reused while a
// dispatcher holds it.
type Request struct {
	sys sysRequest // must stay first, see request_windows.go

	Opcode OpCode
	Fd     uintptr
	Buf    []byte
	Off    int64

	owner    completer
	pinner   runtime.Pinner
	inflight atomic.Bool
	claimed  atomic.Bool
}

func (r *Request) init(owner completer, opcode OpCode, fd uintptr, off int64, b []byte) {
	r.owner = owner
	r.Opcode = opcode
	r.Fd = fd
	r.Off = off
	r.Buf = b
}

// BufPtr is the address of the first byte of Buf, or 0 for a nil buffer.
func (r *Request) BufPtr() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(r.Buf)))
}

func (r *Request) Len() uint32 {
	return uint32(len(r.Buf))
}

// Inflight reports whether the request was issued and not yet completed.
func (r *Request) Inflight() bool {
	return r.inflight.Load()
}

// TryClaim marks the request as taken by whoever gets there first: a worker
// about to run it, or a canceller removing it before it runs.
func (r *Request) TryClaim() bool {
	return r.claimed.CompareAndSwap(false, true)
}

func (r *Request) validate() error {
	if r.Off < 0 || uint64(len(r.Buf)) > MaxTransfer {
		return &OpError{Op: r.Opcode.String(), Code: syscall.EINVAL, Err: syscall.EINVAL}
	}
	return nil
}

// arm pins the request and its buffer; the OS may touch both until Complete.
func (r *Request) arm() {
	r.claimed.Store(false)
	r.pinner.Pin(r)
	if len(r.Buf) > 0 {
		r.pinner.Pin(unsafe.SliceData(r.Buf))
	}
	r.inflight.Store(true)
}

func (r *Request) disarm() {
	r.inflight.Store(false)
	r.pinner.Unpin()
}

// Complete is the dispatcher's single entry point back into the operation.
// n is the transferred byte count, errno is 0 on success.
func (r *Request) Complete(n int, errno syscall.Errno) {
	if !r.inflight.CompareAndSwap(true, false) {
		assert.True(false, "completion delivered for a request that is not in flight")
		return
	}
	r.pinner.Unpin()
	r.owner.complete(n, errno)
}

func (r *Request) opError(errno syscall.Errno) error {
	if errno == 0 {
		return nil
	}
	return &OpError{Op: r.Opcode.String(), Call: r.Opcode.call(), Code: errno, Err: errno}
}

func (r *Request) String() string {
	return fmt.Sprintf("Request | Opcode: %v, Fd: 0x%x, Buf: @0x%x, Len: 0x%08x, Off: 0x%08x, Inflight: %v",
		r.Opcode, r.Fd, r.BufPtr(), len(r.Buf), r.Off, r.inflight.Load())
}
