package pagefile

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// remapPopulate is the one unchecked platform call in this package
// (see the "raw pointers into a shared mmap" re-architecture note):
// every other operation in pagefile goes through Region, PrefetchRange
// or EvictRange. It remaps [addr, addr+length) onto the file at file
// offset fileOff, read-only and shared, at the fixed address addr
// (MAP_FIXED), populating every page before returning where the platform
// supports it.
//
// unix.Mmap doesn't expose a caller-chosen address, so the fixed-address
// remap goes straight through the mmap(2) syscall the same way the Go
// runtime itself issues raw mmap calls internally.
func remapPopulate(region *Region, addr uintptr, length int, fileOff int64) error {
	ret, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(length),
		uintptr(unix.PROT_READ),
		uintptr(unix.MAP_SHARED|unix.MAP_FIXED|populateFlag),
		uintptr(region.Fd()),
		uintptr(fileOff),
	)
	if errno != 0 {
		return fmt.Errorf("mmap(MAP_FIXED) at %#x len %d off %d: %w", addr, length, fileOff, errno)
	}
	if ret != addr {
		return fmt.Errorf("mmap(MAP_FIXED) at %#x len %d off %d: kernel returned %#x", addr, length, fileOff, ret)
	}
	touchPages(addr, length)
	return nil
}
