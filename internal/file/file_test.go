//go:build unix || windows

package file_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"awaitio/internal/aio"
	"awaitio/internal/file"
	"awaitio/internal/util"

	"github.com/cespare/xxhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatcher interface {
	aio.Dispatcher
	Close() error
}

type dispatcherCase struct {
	name string
	make func(t *testing.T) dispatcher
}

type fixture struct {
	path string
	h    *file.Handle
	d    dispatcher
	f    *file.File
}

func setup(t *testing.T, dc dispatcherCase) *fixture {
	fx := &fixture{path: filepath.Join(t.TempDir(), "data.bin")}
	fx.d = dc.make(t)
	t.Cleanup(func() { fx.d.Close() })

	h, err := file.Open(fx.path, file.CreateAlways, file.BufferingDefault)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	fx.h = h

	fx.f, err = file.New(h, fx.d)
	require.NoError(t, err)
	return fx
}

func eachDispatcher(t *testing.T, fn func(t *testing.T, fx *fixture)) {
	for _, dc := range dispatchers() {
		t.Run(dc.name, func(t *testing.T) {
			fn(t, setup(t, dc))
		})
	}
}

func Test_File_Hello(t *testing.T) {
	eachDispatcher(t, func(t *testing.T, fx *fixture) {
		n, err := fx.f.Write(0, []byte("hello")).Await()
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		buf := make([]byte, 5)
		n, err = fx.f.Read(0, buf).Await()
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "hello", string(buf))

		size, err := fx.f.Size()
		require.NoError(t, err)
		assert.EqualValues(t, 5, size)
	})
}

func Test_File_Zero_Length_Write(t *testing.T) {
	eachDispatcher(t, func(t *testing.T, fx *fixture) {
		n, err := fx.f.Write(0, nil).Await()
		assert.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = fx.f.WriteContext(context.Background(), 0, []byte{}).Await()
		assert.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func Test_File_Read_Past_EOF(t *testing.T) {
	eachDispatcher(t, func(t *testing.T, fx *fixture) {
		require.NoError(t, fx.f.SetSize(100))

		n, err := fx.f.Read(1<<20, make([]byte, 64)).Await()
		assert.NoError(t, err)
		assert.Equal(t, 0, n)

		// short read at the tail
		n, err = fx.f.ReadContext(context.Background(), 90, make([]byte, 64)).Await()
		assert.NoError(t, err)
		assert.Equal(t, 10, n)
	})
}

func Test_File_SetSize(t *testing.T) {
	eachDispatcher(t, func(t *testing.T, fx *fixture) {
		require.NoError(t, fx.f.SetSize(8192))
		size, err := fx.f.Size()
		require.NoError(t, err)
		assert.EqualValues(t, 8192, size)

		require.NoError(t, fx.f.SetSize(10))
		size, err = fx.f.Size()
		require.NoError(t, err)
		assert.EqualValues(t, 10, size)

		var opErr *aio.OpError
		err = fx.f.SetSize(-1)
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, "set file size", opErr.Op)

		require.NoError(t, fx.h.Close())
		require.NoError(t, fx.h.Close())

		err = fx.f.SetSize(0)
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, "set file size", opErr.Op)
		assert.NotZero(t, opErr.Code)

		_, err = fx.f.Size()
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, "size", opErr.Op)
	})
}

func Test_File_Concurrent_Disjoint_Writes(t *testing.T) {
	const CHUNK = 4096
	const CHUNKS = 64
	const SEED = 0xfeed

	eachDispatcher(t, func(t *testing.T, fx *fixture) {
		require.NoError(t, fx.f.SetSize(CHUNK*CHUNKS))

		var wg sync.WaitGroup
		for i := range CHUNKS {
			wg.Add(1)
			go func() {
				defer wg.Done()
				off := int64(i * CHUNK)
				buf := make([]byte, CHUNK)
				util.Fill(buf, SEED, off)
				n, err := fx.f.WriteContext(context.Background(), off, buf).Await()
				assert.NoError(t, err)
				assert.Equal(t, CHUNK, n)
			}()
		}
		wg.Wait()

		want := make([]byte, CHUNK*CHUNKS)
		util.Fill(want, SEED, 0)
		got := make([]byte, CHUNK*CHUNKS)
		n, err := fx.f.Read(0, got).Await()
		require.NoError(t, err)
		require.Equal(t, len(got), n)
		assert.Equal(t, xxhash.Sum64(want), xxhash.Sum64(got))
	})
}

func Test_File_Cancel_Large_Write(t *testing.T) {
	const SIZE = 64 << 20

	eachDispatcher(t, func(t *testing.T, fx *fixture) {
		buf := make([]byte, SIZE)
		util.Fill(buf, 1, 0)

		ctx, cancel := context.WithCancel(context.Background())
		op := fx.f.WriteContext(ctx, 0, buf)
		require.NoError(t, op.Start())
		cancel()

		n, err := op.Await()
		if err != nil {
			// the OS may still have written some or all of it
			assert.True(t, aio.IsCanceled(err), "unexpected error: %v", err)
			assert.ErrorIs(t, err, context.Canceled)
			assert.LessOrEqual(t, n, SIZE)
		} else {
			assert.Equal(t, SIZE, n)
		}

		// the dispatcher is still usable afterwards
		n, err = fx.f.Write(0, []byte("after")).Await()
		assert.NoError(t, err)
		assert.Equal(t, 5, n)
	})
}

func Test_File_Already_Canceled(t *testing.T) {
	eachDispatcher(t, func(t *testing.T, fx *fixture) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		n, err := fx.f.WriteContext(ctx, 0, []byte("nope")).Await()
		assert.Equal(t, 0, n)
		assert.True(t, aio.IsCanceled(err))

		size, err := fx.f.Size()
		require.NoError(t, err)
		assert.Zero(t, size, "nothing should have been written")
	})
}

func Test_File_Closed_Dispatcher(t *testing.T) {
	eachDispatcher(t, func(t *testing.T, fx *fixture) {
		require.NoError(t, fx.d.Close())

		op := fx.f.Write(0, []byte("x"))
		err := op.Start()
		assert.True(t, aio.IsClosed(err))

		n, err := op.Await()
		assert.Equal(t, 0, n)
		assert.True(t, aio.IsClosed(err))
	})
}

func Test_File_Unbuffered(t *testing.T) {
	eachDispatcher(t, func(t *testing.T, fx *fixture) {
		path := filepath.Join(t.TempDir(), "direct.bin")
		h, err := file.Open(path, file.CreateAlways, file.Unbuffered)
		if err != nil {
			// tmpfs and friends refuse O_DIRECT
			t.Skip("unbuffered open:", err)
		}
		defer h.Close()

		f, err := file.New(h, fx.d)
		require.NoError(t, err)

		src, err := file.AllocAligned(8192)
		require.NoError(t, err)
		defer file.FreeAligned(src)
		dst, err := file.AllocAligned(8192)
		require.NoError(t, err)
		defer file.FreeAligned(dst)

		util.Fill(src, 9, 4096)
		n, err := f.Write(4096, src).Await()
		require.NoError(t, err)
		assert.Equal(t, 8192, n)

		n, err = f.Read(4096, dst).Await()
		require.NoError(t, err)
		assert.Equal(t, 8192, n)
		assert.Equal(t, src, dst)
	})
}

func Test_Open_Modes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modes.bin")

	_, err := file.Open(path, file.OpenExisting, file.BufferingDefault)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = file.Open(path, file.TruncateExisting, file.BufferingDefault)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	h, err := file.Open(path, file.CreateNew, file.WriteThrough)
	require.NoError(t, err)
	assert.Equal(t, path, h.Name())
	require.NoError(t, h.Close())

	_, err = file.Open(path, file.CreateNew, file.BufferingDefault)
	assert.ErrorIs(t, err, fs.ErrExist)

	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))
	h, err = file.Open(path, file.OpenAlways, file.BufferingDefault)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	h, err = file.Open(path, file.TruncateExisting, file.BufferingDefault)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func Test_New_Rejects_Nil(t *testing.T) {
	_, err := file.New(nil, nil)
	assert.ErrorIs(t, err, aio.ErrInvalidArg)
}
