//go:build !linux && !windows

package aio

type sysRequest struct{}
