package pagefile

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultFanout is the default maximum number of worker goroutines a
// single PrefetchRange call splits a range across, mirroring the source's
// "1..K workers splitting the range on page-aligned chunk boundaries"
// allowance. These workers are ephemeral: PrefetchRange joins all of them
// before returning.
const DefaultFanout = 4

// PrefetchRange page-aligns [start, end) outward — align_down(start),
// align_up(end) — and remaps the corresponding virtual range from the
// file with populate-on-fault semantics, fanning the remap out across up
// to fanout worker goroutines coordinated with an errgroup.Group. It
// returns the number of bytes populated (the page-aligned size) and any
// mapping error; a non-nil error is not fatal to the caller — the range
// simply remains demand-paged and the scheduler is expected to log the
// failure and continue.
func PrefetchRange(region *Region, start, end int64, fanout int) (int64, error) {
	if end <= start {
		return 0, fmt.Errorf("pagefile: empty or inverted range [%d, %d)", start, end)
	}

	alignedStart := AlignDown(start)
	alignedEnd := AlignUp(end)
	if fileEnd := AlignUp(region.Size()); alignedEnd > fileEnd {
		alignedEnd = fileEnd
	}
	size := alignedEnd - alignedStart
	if size <= 0 {
		return 0, nil
	}

	if fanout < 1 {
		fanout = 1
	}
	pages := size / int64(PageSize)
	if int64(fanout) > pages && pages > 0 {
		fanout = int(pages)
	}

	chunk := AlignUp(size / int64(fanout))
	if chunk == 0 {
		chunk = int64(PageSize)
	}

	var g errgroup.Group
	for off := alignedStart; off < alignedEnd; off += chunk {
		off := off
		chunkEnd := off + chunk
		if chunkEnd > alignedEnd {
			chunkEnd = alignedEnd
		}
		g.Go(func() error {
			addr := region.Base() + uintptr(off)
			return remapPopulate(region, addr, int(chunkEnd-off), off)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return size, nil
}
