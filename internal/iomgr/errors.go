package iomgr

import (
	"os"

	"github.com/brickingsoft/errors"
)

var (
	ErrRingSetup = errors.Define("ring setup failed")
	ErrPortSetup = errors.Define("completion port setup failed")
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "iomgr"
	errMetaOpKey  = "op"
)

func setupError(sentinel error, op string, call string, err error) error {
	return errors.From(
		sentinel,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithWrap(os.NewSyscallError(call, err)),
	)
}
