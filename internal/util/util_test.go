package util_test

import (
	"awaitio/internal/util"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Fill_Deterministic(t *testing.T) {
	a := make([]byte, 4096)
	b := make([]byte, 4096)
	util.Fill(a, 7, 0x1000)
	util.Fill(b, 7, 0x1000)
	assert.Equal(t, a, b)

	util.Fill(b, 8, 0x1000)
	assert.NotEqual(t, a, b)

	// ragged tail still gets written
	c := make([]byte, 13)
	util.Fill(c, 7, 0x1000)
	assert.Equal(t, a[:13], c)
}

func Test_Hash_Spreads(t *testing.T) {
	seen := map[uint64]bool{}
	for i := range uint64(1000) {
		seen[util.Hash(i)] = true
	}
	assert.Len(t, seen, 1000)
}

func Test_Hexdump(t *testing.T) {
	data := []byte("hello, world, this is a hexdump!hello")
	s := util.Hexdump(data, 0x40, len(data))
	assert.Contains(t, s, "0x0000000040")
	assert.Contains(t, s, "0x0000000060")
	assert.Contains(t, s, "6865 6c6c")

	// limit larger than data is clamped
	assert.NotPanics(t, func() { util.Hexdump(data[:3], 0, 100) })
	assert.Equal(t, 5, strings.Count(util.Hexdump(data, 0, 32), "\n"))
}
