//go:build windows

package tuning

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func systemMemory() uint64 {
	var mem windows.MemoryStatusEx
	mem.Length = uint32(unsafe.Sizeof(mem))
	if err := windows.GlobalMemoryStatusEx(&mem); err != nil {
		return 0
	}
	return mem.TotalPhys
}
