//go:build linux

package iomgr

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"syscall"

	"awaitio/internal/aio"
	"awaitio/internal/util"

	"github.com/aethne0/giouring"
	"github.com/negrel/assert"
	"golang.org/x/sys/unix"
)

// PERF:
// 1. read/write fixed
// 2. register buffer
// 3. register file
// The ring goroutine is the only thing touching the ring. Submissions funnel
// through opQueue and hold an opSem slot until reaped; cancellations go on a
// separate list that never waits for a slot, so a full ring of requests that
// only end when canceled can still be canceled.

// User data layout: [63] unused (liburing's internal timeout uses all ones)
// [62] cancel tag, [61:32] slot generation, [31:0] ticket.
const (
	udataInternal  = math.MaxUint64
	udataCancelTag = uint64(1) << 62
	udataGenMask   = uint64(1)<<30 - 1
)

func encodeUserData(ticket int, gen uint64) uint64 {
	return (gen&udataGenMask)<<32 | uint64(uint32(ticket))
}

func decodeUserData(ud uint64) (ticket int, gen uint64) {
	return int(uint32(ud)), (ud >> 32) & udataGenMask
}

// IoMgr is the completion-queue dispatcher: one goroutine owns a giouring ring,
// prepares SQEs for issued requests and completes them from their CQEs.
type IoMgr struct {
	log  *slog.Logger
	ring *giouring.Ring
	opts options

	opQueue chan *aio.Request
	opSem   chan struct{}

	cancelMu sync.Mutex
	cancels  []*aio.Request
	wake     chan struct{}

	mu     sync.RWMutex
	closed bool
	quit   chan struct{}
	exited chan struct{}

	// owned by the ring goroutine
	registry util.TicketQueue[*aio.Request]
	gens     []uint64
}

func CreateIoMgr(opts ...Option) (*IoMgr, error) {
	log := slog.With("src", "IoMgr")
	o := resolve(opts)

	ring, err := giouring.CreateRing(o.entries)
	if err != nil {
		return nil, setupError(ErrRingSetup, "create", "io_uring_setup", err)
	}

	iomgr := IoMgr{
		log:      log,
		ring:     ring,
		opts:     o,
		opQueue:  make(chan *aio.Request, o.entries),
		opSem:    make(chan struct{}, o.entries),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
		registry: util.CreateTicketQueue[*aio.Request](int(o.entries)),
		gens:     make([]uint64, o.entries),
	}

	log.Debug("CreateIoMgr", "entries", o.entries, "cpu", o.cpu)
	go iomgr.ringlord()
	return &iomgr, nil
}

// Close stops the ring goroutine. Requests still in flight are canceled and
// completed before Close returns; later Issue calls fail with aio.ErrClosed.
func (m *IoMgr) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.exited
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.quit)
	<-m.exited
	return nil
}

// Issue waits for a ring slot, or until ctx is done. Every request holds its
// slot until its CQE is reaped, and opQueue is as deep as the semaphore, so the
// send below never blocks while holding mu.
func (m *IoMgr) Issue(ctx context.Context, r *aio.Request) error {
	select {
	case m.opSem <- struct{}{}:
	case <-m.quit:
		return aio.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		<-m.opSem
		return aio.ErrClosed
	}
	m.opQueue <- r
	return nil
}

// Cancel never waits for a slot. Each request is canceled at most once by its
// operation, so the cancel CQEs fit next to the request CQEs (the CQ is twice
// the ring size).
func (m *IoMgr) Cancel(r *aio.Request) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		// shutdown cancels whatever is still in flight
		return aio.ErrClosed
	}
	m.cancelMu.Lock()
	m.cancels = append(m.cancels, r)
	m.cancelMu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

// getSQE hands out an SQE. When the submission queue is full it submits what is
// prepared, and if the kernel is still busy it waits on completions before
// trying again.
func (m *IoMgr) getSQE(queued, inflight *uint) *giouring.SubmissionQueueEntry {
	for {
		if sqe := m.ring.GetSQE(); sqe != nil {
			return sqe
		}
		m.submit(queued, inflight)
		if sqe := m.ring.GetSQE(); sqe != nil {
			return sqe
		}
		m.wait(*inflight)
		m.reap(inflight)
	}
}

// collectCancels preps a cancel SQE for every request on the cancel list. A
// request is always sent on opQueue before it can be canceled, so opQueue is
// drained first and every listed request is already registered.
func (m *IoMgr) collectCancels(queued, inflight *uint) {
	for len(m.opQueue) > 0 {
		m.prep(<-m.opQueue, queued, inflight)
	}

	m.cancelMu.Lock()
	cancels := m.cancels
	m.cancels = nil
	m.cancelMu.Unlock()

	for _, r := range cancels {
		m.prepCancel(r, queued, inflight)
	}
}

func (m *IoMgr) prepCancel(r *aio.Request, queued, inflight *uint) {
	ticket, gen := decodeUserData(r.UserData())
	if !r.Inflight() || m.registry.Get(ticket) != r || m.gens[ticket] != gen {
		// already reaped, nothing left to cancel
		return
	}
	sqe := m.getSQE(queued, inflight)
	sqe.PrepareCancel64(r.UserData(), 0)
	sqe.UserData = r.UserData() | udataCancelTag
	*queued++
}

func (m *IoMgr) prep(r *aio.Request, queued, inflight *uint) {
	ticket := m.registry.Acq(r)
	// the generation only has as many bits as the user data carries
	m.gens[ticket] = (m.gens[ticket] + 1) & udataGenMask
	r.SetUserData(encodeUserData(ticket, m.gens[ticket]))

	sqe := m.getSQE(queued, inflight)
	switch r.Opcode {
	case aio.OpWrite:
		sqe.PrepareWrite(int(r.Fd), r.BufPtr(), r.Len(), uint64(r.Off))
	case aio.OpRead:
		sqe.PrepareRead(int(r.Fd), r.BufPtr(), r.Len(), uint64(r.Off))
	default:
		sqe.PrepareNop()
	}
	sqe.UserData = r.UserData()
	*queued++
}

func (m *IoMgr) submit(queued, inflight *uint) {
	if *queued == 0 {
		return
	}
	submitted, err := m.ring.Submit()
	if err != nil && err != unix.ETIME && err != unix.EINTR && err != unix.EBUSY && err != unix.EAGAIN {
		m.log.Error("Submit", "err", err)
	}
	assert.GreaterOrEqual(*queued, submitted, "submitted more SQEs than were prepared")
	*queued -= submitted
	*inflight += submitted
}

// wait blocks for the first CQE, but never longer than the wait timeout so
// new submissions and cancellations keep flowing.
func (m *IoMgr) wait(inflight uint) {
	if inflight == 0 {
		return
	}
	ts := syscall.NsecToTimespec(int64(m.opts.waitTimeout))
	_, err := m.ring.WaitCQETimeout(&ts)
	if err != nil && err != unix.ETIME && err != unix.EINTR && err != unix.EAGAIN {
		m.log.Warn("WaitCQETimeout", "err", err)
	}
}

func (m *IoMgr) reap(inflight *uint) {
	for *inflight > 0 {
		cqe, err := m.ring.PeekCQE()
		if err == unix.EAGAIN || err == unix.EINTR || err == unix.ETIME {
			break
		} else if err != nil {
			m.log.Error("Peek cqe fatal error", "err", err)
			panic("Something wrong with your IO_URING!")
		}
		if cqe == nil {
			break
		}

		ud, res := cqe.UserData, cqe.Res
		m.ring.CQESeen(cqe)

		if ud == udataInternal {
			continue
		}

		*inflight--

		if ud&udataCancelTag != 0 {
			// 0: canceled, -ENOENT: already done, -EALREADY: running, will finish on its own
			m.log.Debug("cancel cqe", "userdata", ud&^udataCancelTag, "res", res)
			continue
		}
		<-m.opSem

		ticket, gen := decodeUserData(ud)
		r := m.registry.Get(ticket)
		if r == nil || m.gens[ticket] != gen {
			m.log.Warn("cqe for unknown request", "userdata", ud, "res", res)
			continue
		}
		m.registry.Rel(ticket)

		if res < 0 {
			r.Complete(0, syscall.Errno(-res))
		} else {
			r.Complete(int(res), 0)
		}
	}
}

// "Those who sow the good seed
// Shall surely reap"
func (m *IoMgr) ringlord() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(m.exited)

	if m.opts.cpu >= 0 {
		var cpuSet unix.CPUSet
		cpuSet.Zero()
		cpuSet.Set(m.opts.cpu)
		if err := unix.SchedSetaffinity(0, &cpuSet); err != nil {
			m.log.Warn("Couldn't set core affinity for ring manager", "cpu", m.opts.cpu, "err", err)
		}
	}

	var queued uint = 0   // SQEs that we have "got" and prepared from the opQueue
	var inflight uint = 0 // SQEs that have been SUBMITTED

	// The loop is split into three phases:
	// 1. collect submissions from opQueue and get+prepare SQEs
	// 2. submit prepared SQEs
	// 3. wait (bounded) for and reap CQEs
	for {
		// STAGE 1
		if inflight == 0 && queued == 0 {
			// nothing in flight means nothing to reap, so block until there is work
			select {
			case r := <-m.opQueue:
				m.prep(r, &queued, &inflight)
			case <-m.wake:
				m.collectCancels(&queued, &inflight)
			case <-m.quit:
				m.shutdown(&queued, &inflight)
				return
			}
		}
	COLLECT:
		for {
			select {
			case r := <-m.opQueue:
				m.prep(r, &queued, &inflight)
			case <-m.wake:
				m.collectCancels(&queued, &inflight)
			case <-m.quit:
				m.shutdown(&queued, &inflight)
				return
			default:
				break COLLECT
			}
		}

		// STAGE 2
		m.submit(&queued, &inflight)

		// STAGE 3
		if queued == 0 && len(m.opQueue) == 0 && len(m.wake) == 0 {
			m.wait(inflight)
		}
		m.reap(&inflight)
	}
}

// shutdown drains what was accepted before Close, cancels everything still in
// flight and reaps until the kernel has returned every request.
func (m *IoMgr) shutdown(queued, inflight *uint) {
	// Issue and Cancel hold mu while adding work, and Close took mu before
	// closing quit, so nothing can be added from here on.
	for len(m.opQueue) > 0 {
		m.prep(<-m.opQueue, queued, inflight)
	}
	// everything held is canceled below
	m.cancelMu.Lock()
	m.cancels = nil
	m.cancelMu.Unlock()

	if m.log.Enabled(context.Background(), slog.LevelDebug) {
		m.log.Debug("shutdown", "queued", *queued, "inflight", *inflight, "requests", m.dumpInflight())
	}

	m.registry.Held(func(ticket int, r *aio.Request) {
		sqe := m.getSQE(queued, inflight)
		sqe.PrepareCancel64(r.UserData(), 0)
		sqe.UserData = r.UserData() | udataCancelTag
		*queued++
	})

	for *queued > 0 || *inflight > 0 {
		m.submit(queued, inflight)
		m.wait(*inflight)
		m.reap(inflight)
	}

	m.ring.QueueExit()
	m.log.Debug("ring closed")
}
