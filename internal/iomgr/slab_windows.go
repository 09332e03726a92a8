package iomgr

import (
	"log/slog"
	"unsafe"

	"golang.org/x/sys/windows"
)

const ALIGN = uint64(0x1000)

// VirtualAlloc hands out whole pages, which covers FILE_FLAG_NO_BUFFERING's
// sector alignment.
func AllocSlab(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		slog.Error("AllocSlab", "size", size, "err", err)
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func DeallocSlab(ptr []byte) error {
	if len(ptr) == 0 {
		return nil
	}
	err := windows.VirtualFree(uintptr(unsafe.Pointer(&ptr[0])), 0, windows.MEM_RELEASE)
	if err != nil {
		slog.Error("DeallocSlab", "err", err)
	}
	return err
}
