package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	c "awaitio/internal"
	"awaitio/internal/aio"
	"awaitio/internal/file"
	"awaitio/internal/iomgr"
	"awaitio/internal/util"

	"github.com/cespare/xxhash"
	"github.com/lmittmann/tint"
)

type config struct {
	path       string
	size       int64
	chunk      int
	timeout    time.Duration
	unbuffered bool
	dispatcher string
	seed       uint64
}

type dispatcher interface {
	aio.Dispatcher
	Close() error
}

func main() {
	var cfg config
	var verbose bool
	flag.StringVar(&cfg.path, "path", "", "file to write and verify (required, truncated)")
	flag.Int64Var(&cfg.size, "size", c.DEFAULT_SIZE, "bytes to write")
	flag.IntVar(&cfg.chunk, "chunk", c.DEFAULT_CHUNK, "bytes per operation")
	flag.DurationVar(&cfg.timeout, "timeout", 10*time.Second, "cancel whatever is still running after this long")
	flag.BoolVar(&cfg.unbuffered, "unbuffered", false, "bypass the page cache (chunk and size must be page aligned)")
	flag.StringVar(&cfg.dispatcher, "dispatcher", defaultDispatcher, "completion dispatcher: "+dispatcherNames)
	flag.Uint64Var(&cfg.seed, "seed", 0, "fill pattern seed, 0 picks one from the clock")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))

	if err := run(cfg); err != nil {
		slog.Error("awaitio", "err", err)
		os.Exit(1)
	}
}

func (cfg *config) validate() error {
	if cfg.path == "" {
		return errors.New("-path is required")
	}
	if cfg.size <= 0 || cfg.chunk <= 0 {
		return errors.New("-size and -chunk must be positive")
	}
	if uint64(cfg.chunk) > aio.MaxTransfer {
		return fmt.Errorf("-chunk larger than %d", aio.MaxTransfer)
	}
	if cfg.unbuffered && (cfg.size%int64(iomgr.ALIGN) != 0 || uint64(cfg.chunk)%iomgr.ALIGN != 0) {
		return fmt.Errorf("-unbuffered needs -size and -chunk to be multiples of %d", iomgr.ALIGN)
	}
	if cfg.seed == 0 {
		cfg.seed = uint64(time.Now().UnixNano())
	}
	return nil
}

func run(cfg config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	buffering := file.BufferingDefault
	if cfg.unbuffered {
		buffering = file.Unbuffered
	}
	h, err := file.Open(cfg.path, file.CreateAlways, buffering)
	if err != nil {
		return err
	}
	defer h.Close()

	d, err := openDispatcher(cfg.dispatcher)
	if err != nil {
		return err
	}
	defer d.Close()

	f, err := file.New(h, d)
	if err != nil {
		return err
	}
	if err := f.SetSize(cfg.size); err != nil {
		return err
	}

	src, err := alloc(int(cfg.size), cfg.unbuffered)
	if err != nil {
		return err
	}
	defer free(src, cfg.unbuffered)
	dst, err := alloc(int(cfg.size), cfg.unbuffered)
	if err != nil {
		return err
	}
	defer free(dst, cfg.unbuffered)

	util.Fill(src, cfg.seed, 0)
	chunks := c.ChunkCount(cfg.chunk, cfg.size)
	slog.Info("run", "path", cfg.path, "size", cfg.size, "chunk", cfg.chunk, "chunks", chunks,
		"dispatcher", cfg.dispatcher, "buffering", buffering, "seed", cfg.seed)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	start := time.Now()
	written, err := phase(ctx, "write", chunks, cfg, func(off int64, n int) *aio.CancellableOperation {
		return f.WriteContext(ctx, off, src[off:off+int64(n)])
	})
	if err != nil {
		return err
	}
	writeTime := time.Since(start)

	start = time.Now()
	read, err := phase(ctx, "read", chunks, cfg, func(off int64, n int) *aio.CancellableOperation {
		return f.ReadContext(ctx, off, dst[off:off+int64(n)])
	})
	if err != nil {
		return err
	}
	readTime := time.Since(start)

	verified := 0
	for i := range chunks {
		if !written[i] || !read[i] {
			continue
		}
		off, n := c.ChunkSpan(i, cfg.chunk, cfg.size)
		want, got := src[off:off+int64(n)], dst[off:off+int64(n)]
		if xxhash.Sum64(want) != xxhash.Sum64(got) {
			fmt.Fprint(os.Stderr, "expected:\n", util.Hexdump(want, off, 256))
			fmt.Fprint(os.Stderr, "got:\n", util.Hexdump(got, off, 256))
			return fmt.Errorf("chunk %d at 0x%x failed verification", i, off)
		}
		verified++
	}

	slog.Info("done",
		"verified", verified, "chunks", chunks,
		"write", writeTime, "write_MiBps", mibps(cfg.size, writeTime),
		"read", readTime, "read_MiBps", mibps(cfg.size, readTime))
	if verified < chunks {
		return fmt.Errorf("%d of %d chunks canceled before verification", chunks-verified, chunks)
	}
	return nil
}

// phase starts one operation per chunk, then awaits them all. It returns which
// chunks transferred completely; canceled ones are only logged.
func phase(ctx context.Context, name string, chunks int, cfg config,
	mk func(off int64, n int) *aio.CancellableOperation) ([]bool, error) {
	log := slog.With("phase", name)

	ops := make([]*aio.CancellableOperation, chunks)
	for i := range chunks {
		ops[i] = mk(c.ChunkSpan(i, cfg.chunk, cfg.size))
		if err := ops[i].Start(); err != nil {
			// already started ones must still be awaited before their buffers go away
			for _, op := range ops[:i] {
				op.Await()
			}
			return nil, err
		}
	}

	// every operation is awaited, even after a failure, so no buffer is
	// released while the OS may still use it
	ok := make([]bool, chunks)
	canceled := 0
	var firstErr error
	for i, op := range ops {
		off, want := c.ChunkSpan(i, cfg.chunk, cfg.size)
		n, err := op.Await()
		switch {
		case aio.IsCanceled(err):
			canceled++
			log.Debug("canceled", "chunk", i, "off", off, "n", n, "err", err)
		case err != nil:
			firstErr = cmp.Or(firstErr, err)
		case n != want:
			firstErr = cmp.Or(firstErr, fmt.Errorf("%s chunk %d at 0x%x: short transfer %d of %d", name, i, off, n, want))
		default:
			ok[i] = true
		}
	}
	if canceled > 0 {
		log.Debug("operations canceled", "canceled", canceled, "cause", context.Cause(ctx))
	}
	return ok, firstErr
}

func alloc(size int, aligned bool) ([]byte, error) {
	if aligned {
		return file.AllocAligned(size)
	}
	return make([]byte, size), nil
}

func free(b []byte, aligned bool) {
	if aligned {
		file.FreeAligned(b)
	}
}

func mibps(size int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(size) / (1 << 20) / d.Seconds()
}
