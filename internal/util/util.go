package util

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Hexdump renders up to limit bytes of data as u16 chunks, 32 bytes per row,
// starting the offset column at base.
func Hexdump(data []byte, base int64, limit int) string {
	if limit > len(data) {
		limit = len(data)
	}

	const bytesPerRow = 32
	var b strings.Builder
	b.WriteString("┏━━━━━━━━━━━━━━┳━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━┓\n")
	fmt.Fprintf(&b, "┃ Offset       ┃ u16 Chunks (BigEndian) - %8d bytes (0x%06x)                                ┃\n",
		limit, limit)
	b.WriteString("┣━━━━━━━━━━━━━━╋━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━┫\n")

	for i := 0; i < limit; i += bytesPerRow {
		fmt.Fprintf(&b, "┃ 0x%010x ┃ ", base+int64(i))
		for j := 0; j < bytesPerRow; j += 2 {
			if i+j+1 < limit {
				fmt.Fprintf(&b, "%04x ", binary.BigEndian.Uint16(data[i+j:i+j+2]))
			} else {
				b.WriteString("     ")
			}
			// Space every 8 bytes to keep your eyes from crossing
			if (j+2)%8 == 0 {
				b.WriteString(" ")
			}
		}
		b.WriteString("┃\n")
	}
	b.WriteString("┗━━━━━━━━━━━━━━┻━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━┛\n")

	return b.String()
}

// splitmix64
func Hash(val uint64) uint64 {
	x := val
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x = x ^ (x >> 31)
	return x
}

// Fill writes a deterministic pattern derived from seed and the absolute file
// offset of buf, so any chunk can be regenerated for verification on its own.
func Fill(buf []byte, seed uint64, off int64) {
	var word [8]byte
	for i := 0; i < len(buf); i += 8 {
		binary.LittleEndian.PutUint64(word[:], Hash(seed^uint64(off+int64(i))))
		copy(buf[i:], word[:])
	}
}
