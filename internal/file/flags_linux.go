package file

import "golang.org/x/sys/unix"

const (
	oDirect = unix.O_DIRECT
	oDsync  = unix.O_DSYNC
)
