//go:build unix && !linux

package file

import "golang.org/x/sys/unix"

// No portable O_DIRECT outside linux; Unbuffered falls back to the page cache.
const (
	oDirect = 0
	oDsync  = unix.O_SYNC
)
