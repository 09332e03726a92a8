package file_test

import (
	"testing"

	"awaitio/internal/iomgr"

	"github.com/stretchr/testify/require"
)

func dispatchers() []dispatcherCase {
	return []dispatcherCase{
		{"port", func(t *testing.T) dispatcher {
			p, err := iomgr.CreatePort(iomgr.WithWorkers(2))
			require.NoError(t, err)
			return p
		}},
	}
}
