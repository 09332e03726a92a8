//go:build unix && !linux

package file_test

import (
	"testing"

	"awaitio/internal/iomgr"
)

func dispatchers() []dispatcherCase {
	return []dispatcherCase{
		{"pool", func(t *testing.T) dispatcher {
			return iomgr.CreatePoolMgr(iomgr.WithWorkers(4))
		}},
	}
}
