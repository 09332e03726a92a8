//go:build unix && !linux

package main

import (
	"fmt"

	"awaitio/internal/iomgr"
)

const defaultDispatcher = "pool"
const dispatcherNames = "pool"

func openDispatcher(name string) (dispatcher, error) {
	if name == "pool" {
		return iomgr.CreatePoolMgr(), nil
	}
	return nil, fmt.Errorf("unknown dispatcher %q, want %s", name, dispatcherNames)
}
