package file_test

import (
	"testing"

	"awaitio/internal/iomgr"
)

func dispatchers() []dispatcherCase {
	return []dispatcherCase{
		{"uring", func(t *testing.T) dispatcher {
			m, err := iomgr.CreateIoMgr(iomgr.WithEntries(32))
			if err != nil {
				t.Skip("io_uring unavailable:", err)
			}
			return m
		}},
		{"pool", func(t *testing.T) dispatcher {
			return iomgr.CreatePoolMgr(iomgr.WithWorkers(4))
		}},
	}
}
