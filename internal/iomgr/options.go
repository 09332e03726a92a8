package iomgr

import (
	"runtime"
	"time"
)

const RING_ENTRIES = 0x100
const WAIT_TIMEOUT = time.Millisecond

type options struct {
	entries     uint32
	cpu         int
	waitTimeout time.Duration
	workers     int
	queue       int
}

func defaultOptions() options {
	return options{
		entries:     RING_ENTRIES,
		cpu:         -1,
		waitTimeout: WAIT_TIMEOUT,
		workers:     runtime.NumCPU(),
		queue:       RING_ENTRIES,
	}
}

type Option func(*options)

// WithEntries sets the ring size, which also bounds the requests in flight.
func WithEntries(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.entries = n
		}
	}
}

// WithCPU pins the ring goroutine's thread to one core. Negative disables it.
func WithCPU(cpu int) Option {
	return func(o *options) { o.cpu = cpu }
}

// WithWaitTimeout bounds how long the ring goroutine waits for completions
// before looking for new submissions and cancellations again.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

// WithWorkers sets the number of completion goroutines (port, pool).
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueue sets the pool's pending request queue length.
func WithQueue(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queue = n
		}
	}
}

func resolve(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
