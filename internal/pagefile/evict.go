package pagefile

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// EvictRange page-aligns [start, end) inward — align_up(start),
// align_down(end) — and advises the kernel that the corresponding pages
// may be dropped from physical memory (MADV_DONTNEED). The virtual
// mapping is left intact and backed by the file; a later PrefetchRange
// over (part of) the same range pages the data back in. Inward rounding
// means a range entirely within one page collapses to empty and this is
// a no-op: evicting must never advise pages that partially overlap valid
// data outside [start, end).
func EvictRange(region *Region, start, end int64) error {
	alignedStart := AlignUp(start)
	alignedEnd := AlignDown(end)
	if alignedEnd <= alignedStart {
		return nil
	}

	length := int(alignedEnd - alignedStart)
	addr := region.Base() + uintptr(alignedStart)
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("madvise(MADV_DONTNEED) at %#x len %d: %w", addr, length, err)
	}
	return nil
}
