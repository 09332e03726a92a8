//go:build unix

package iomgr

import (
	"context"
	"log/slog"
	"sync"
	"syscall"

	"awaitio/internal/aio"

	"golang.org/x/sys/unix"
)

// PoolMgr dispatches requests to worker goroutines that run positional
// syscalls. It works on any unix and is the fallback where io_uring is not
// available; unlike the ring, a worker's thread blocks for the duration of the
// call.
type PoolMgr struct {
	log   *slog.Logger
	opts  options
	queue chan *aio.Request
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func CreatePoolMgr(opts ...Option) *PoolMgr {
	m := newPoolMgr(opts...)
	m.start()
	return m
}

func newPoolMgr(opts ...Option) *PoolMgr {
	o := resolve(opts)
	return &PoolMgr{
		log:   slog.With("src", "PoolMgr"),
		opts:  o,
		queue: make(chan *aio.Request, o.queue),
	}
}

func (m *PoolMgr) start() {
	m.log.Debug("CreatePoolMgr", "workers", m.opts.workers, "queue", m.opts.queue)
	for range m.opts.workers {
		m.wg.Add(1)
		go m.worker()
	}
}

// Close stops accepting requests; queued ones still run before it returns.
func (m *PoolMgr) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

// Issue waits for room in the queue, or until ctx is done. Close waits for the
// read lock, and workers keep draining the queue meanwhile.
func (m *PoolMgr) Issue(ctx context.Context, r *aio.Request) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return aio.ErrClosed
	}
	select {
	case m.queue <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel only wins against a request no worker has picked up yet. A running
// pread/pwrite cannot be interrupted and completes normally.
func (m *PoolMgr) Cancel(r *aio.Request) error {
	if r.TryClaim() {
		r.Complete(0, syscall.ECANCELED)
	}
	return nil
}

func (m *PoolMgr) worker() {
	defer m.wg.Done()
	for r := range m.queue {
		if !r.TryClaim() {
			// canceled while queued, already completed
			continue
		}
		n, errno := transfer(r)
		r.Complete(n, errno)
	}
}

func transfer(r *aio.Request) (int, syscall.Errno) {
	for {
		var n int
		var err error
		switch r.Opcode {
		case aio.OpWrite:
			n, err = unix.Pwrite(int(r.Fd), r.Buf, r.Off)
		case aio.OpRead:
			n, err = unix.Pread(int(r.Fd), r.Buf, r.Off)
		default:
			return 0, 0
		}
		if err == nil {
			return n, 0
		}
		if err == unix.EINTR {
			continue
		}
		if errno, ok := err.(syscall.Errno); ok {
			return 0, errno
		}
		return 0, syscall.EIO
	}
}
