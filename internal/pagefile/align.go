// Package pagefile provides the read-only, page-aligned view over a
// memory-mapped weights file that the prefetch scheduler and the
// compute-side coordination API operate on.
package pagefile

import "os"

// PageSize is the system page size, read once at process start the same
// way readahead.alignValueToPageSize in the reference server reads it.
var PageSize = os.Getpagesize()

// AlignDown rounds off down to the nearest multiple of PageSize at or
// below off.
func AlignDown(off int64) int64 {
	p := int64(PageSize)
	return off &^ (p - 1)
}

// AlignUp rounds off up to the nearest multiple of PageSize at or above
// off.
func AlignUp(off int64) int64 {
	p := int64(PageSize)
	return (off + p - 1) &^ (p - 1)
}
