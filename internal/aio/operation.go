package aio

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"syscall"

	"code.hybscloud.com/iox"
)

const (
	stateIdle int32 = iota
	stateIssued
)

// operation holds what both variants share: the embedded request, the issue
// state and the outcome. The outcome fields are written once, before done is
// closed, and only read after it.
type operation struct {
	req   Request
	d     Dispatcher
	state atomic.Int32
	done  chan struct{}

	n   int
	err error
}

func (o *operation) init(owner completer, d Dispatcher, opcode OpCode, fd uintptr, off int64, b []byte) {
	o.d = d
	o.done = make(chan struct{})
	o.req.init(owner, opcode, fd, off, b)
}

func (o *operation) issue(ctx context.Context) error {
	if o.d == nil {
		return issueError(o.req.Opcode, ErrInvalidArg)
	}
	if err := o.req.validate(); err != nil {
		return err
	}
	o.req.arm()
	if err := o.d.Issue(ctx, &o.req); err != nil {
		o.req.disarm()
		return issueError(o.req.Opcode, err)
	}
	return nil
}

func (o *operation) resolve(n int, err error) {
	o.n = n
	o.err = err
	close(o.done)
}

func (o *operation) resolved() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// Done is closed once the outcome is known.
func (o *operation) Done() <-chan struct{} {
	return o.done
}

// Result polls the outcome without blocking. It reports iox.ErrWouldBlock
// until the operation has resolved.
func (o *operation) Result() (int, error) {
	if !o.resolved() {
		return 0, iox.ErrWouldBlock
	}
	return o.n, o.err
}

func (o *operation) Opcode() OpCode {
	return o.req.Opcode
}

// Operation is one asynchronous read or write. It does nothing until Start or
// Await is called.
type Operation struct {
	operation
}

func NewOperation(d Dispatcher, opcode OpCode, fd uintptr, off int64, b []byte) *Operation {
	op := &Operation{}
	op.init(op, d, opcode, fd, off, b)
	return op
}

// Start issues the request without waiting for it. A non-nil error means the
// request was rejected synchronously; nothing is left outstanding. Calls after
// the first return nil.
func (op *Operation) Start() error {
	if !op.state.CompareAndSwap(stateIdle, stateIssued) {
		return nil
	}
	if err := op.issue(context.Background()); err != nil {
		op.resolve(0, err)
		return err
	}
	return nil
}

// Await issues the request if needed and parks until it completes. The byte
// count is returned even when it is zero or short of len(b).
func (op *Operation) Await() (int, error) {
	if err := op.Start(); err != nil {
		return 0, err
	}
	<-op.done
	return op.n, op.err
}

func (op *Operation) complete(n int, errno syscall.Errno) {
	op.resolve(n, op.req.opError(errno))
}

const (
	undecided int32 = iota
	decidedCompleted
	decidedCanceled
)

// CancellableOperation races the request against ctx. Whichever of completion
// and cancellation claims the decision flag first decides the outcome; the
// waiting goroutine is resumed exactly once, and only after the OS has
// finished with the request.
type CancellableOperation struct {
	operation
	ctx      context.Context
	decision atomic.Int32
	stop     atomic.Pointer[func() bool]
}

func NewCancellableOperation(ctx context.Context, d Dispatcher, opcode OpCode, fd uintptr, off int64, b []byte) *CancellableOperation {
	op := &CancellableOperation{ctx: ctx}
	op.init(op, d, opcode, fd, off, b)
	return op
}

// Start issues the request and subscribes to ctx. If ctx is already done the
// operation resolves as canceled without issuing anything.
func (op *CancellableOperation) Start() error {
	if !op.state.CompareAndSwap(stateIdle, stateIssued) {
		return nil
	}
	if op.ctx.Err() != nil {
		op.decision.Store(decidedCanceled)
		op.resolve(0, op.canceledError())
		return nil
	}
	if err := op.issue(op.ctx); err != nil {
		if op.ctx.Err() != nil && errors.Is(err, op.ctx.Err()) {
			// gave up waiting for room in the dispatcher, nothing was issued
			op.decision.Store(decidedCanceled)
			op.resolve(0, op.canceledError())
			return nil
		}
		op.resolve(0, err)
		return err
	}
	if op.resolved() {
		return nil
	}

	stop := context.AfterFunc(op.ctx, op.cancel)
	op.stop.Store(&stop)
	// complete may have won before the registration existed
	if op.decision.Load() == decidedCompleted {
		stop()
	}
	return nil
}

// Await issues the request if needed and parks until it resolves. A canceled
// operation reports an *OpError wrapping ErrCanceled and the context cause,
// together with whatever byte count the OS reported.
func (op *CancellableOperation) Await() (int, error) {
	if err := op.Start(); err != nil {
		return 0, err
	}
	<-op.done
	return op.n, op.err
}

func (op *CancellableOperation) cancel() {
	if !op.decision.CompareAndSwap(undecided, decidedCanceled) {
		return
	}
	// The outcome is delivered by the completion that follows, which is the
	// OS telling us the request is no longer outstanding.
	if err := op.d.Cancel(&op.req); err != nil {
		slog.Debug("cancel", "req", &op.req, "err", err)
	}
}

func (op *CancellableOperation) complete(n int, errno syscall.Errno) {
	if op.decision.CompareAndSwap(undecided, decidedCompleted) {
		if stop := op.stop.Load(); stop != nil {
			(*stop)()
		}
		op.resolve(n, op.req.opError(errno))
		return
	}
	if isAbort(errno) {
		n = 0
	}
	op.resolve(n, op.canceledError())
}

func (op *CancellableOperation) canceledError() error {
	return &OpError{Op: op.req.Opcode.String(), Err: ErrCanceled, Cause: context.Cause(op.ctx)}
}
