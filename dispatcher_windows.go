package main

import (
	"fmt"

	"awaitio/internal/iomgr"
)

const defaultDispatcher = "port"
const dispatcherNames = "port"

func openDispatcher(name string) (dispatcher, error) {
	if name == "port" {
		return iomgr.CreatePort()
	}
	return nil, fmt.Errorf("unknown dispatcher %q, want %s", name, dispatcherNames)
}
