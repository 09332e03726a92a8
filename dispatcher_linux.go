package main

import (
	"fmt"

	"awaitio/internal/iomgr"
)

const defaultDispatcher = "uring"
const dispatcherNames = "uring|pool"

func openDispatcher(name string) (dispatcher, error) {
	switch name {
	case "uring":
		return iomgr.CreateIoMgr()
	case "pool":
		return iomgr.CreatePoolMgr(), nil
	}
	return nil, fmt.Errorf("unknown dispatcher %q, want %s", name, dispatcherNames)
}
