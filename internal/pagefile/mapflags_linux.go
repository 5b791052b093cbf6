//go:build linux

package pagefile

import "golang.org/x/sys/unix"

// populateFlag is OR'd into the remap's mmap flags so the kernel
// synchronously pre-reads every page before the call returns, instead of
// leaving the range demand-paged.
const populateFlag = unix.MAP_POPULATE

// touchPages is a no-op on Linux: MAP_POPULATE already forced every page
// in before the mmap syscall in remapPopulate returned.
func touchPages(addr uintptr, length int) {}
