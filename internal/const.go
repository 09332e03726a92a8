// Constants
package internal

const _OS_PAGE = 0x1000
const PAGE_SIZE = _OS_PAGE

// CLI defaults: 64 KiB chunks, 16 MiB in total.
const DEFAULT_CHUNK = PAGE_SIZE << 4
const DEFAULT_SIZE = DEFAULT_CHUNK << 8

// ChunkSpan returns the offset and length of chunk i when size bytes are cut
// into chunk-sized pieces. Only the last one can be short.
func ChunkSpan(i int, chunk int, size int64) (off int64, n int) {
	off = int64(i) * int64(chunk)
	n = int(min(int64(chunk), size-off))
	return off, n
}

// ChunkCount is the number of chunks ChunkSpan hands out for size.
func ChunkCount(chunk int, size int64) int {
	return int((size + int64(chunk) - 1) / int64(chunk))
}
