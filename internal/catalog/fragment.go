// Package catalog builds and holds the layer catalogue: the ordered table
// of layer descriptors the prefetch scheduler walks and the compute-side
// coordination API looks layers up in.
package catalog

import "fmt"

// Fragment is a [start, end) byte range into the weights file belonging to
// a single layer. Offsets need not be page-aligned; alignment happens at
// the pagefile.PrefetchRange/EvictRange boundary, not here.
type Fragment struct {
	Start uint64
	End   uint64
}

func (f Fragment) validate() error {
	if f.Start >= f.End {
		return fmt.Errorf("catalog: fragment start %d >= end %d", f.Start, f.End)
	}
	return nil
}
