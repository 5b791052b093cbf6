package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Catalog is the ordered table of layer descriptors built at startup from
// the offsets the runtime resolves out of the weights file. It is built
// once and never mutated after construction — only the Descriptors it
// holds change over the process lifetime (their ready flag).
type Catalog struct {
	ByName map[string]*Descriptor
	Order  []string

	// K is the first dynamic layer index: layers with layer_index >= K are
	// dynamic, the rest stay resident (never evicted); W is the
	// scheduler's sliding prefetch window.
	K int32
	W int32

	// PrefetchInput mirrors the original's prefetch_input flag: when set,
	// resident layers carrying layer_index -1 (such as token_embd) are
	// pinned at startup like the other resident layers; when unset,
	// PrefetchResident skips them.
	PrefetchInput bool
}

// OffsetEntry is one fragment belonging to a layer, as resolved from the
// tensor source names in the weights file. Index is the layer_index the
// catalogue builder records for the owning layer (-1 for non-blk
// layers); every entry for a given layer name must carry the same Index.
type OffsetEntry struct {
	Name  string
	Start uint64
	End   uint64
	Index int32
}

// New builds a Catalog from per-layer offset lists keyed by resolved
// layer name (e.g. "blk.3", "output_norm", "token_embd"). K and W come
// from the 8-byte config handed to the runtime at startup.
func New(offsets map[string][]OffsetEntry, k, w int32, prefetchInput bool) (*Catalog, error) {
	if w <= 0 {
		return nil, fmt.Errorf("catalog: window W must be positive, got %d", w)
	}
	if k < 0 {
		return nil, fmt.Errorf("catalog: first dynamic layer index K must be non-negative, got %d", k)
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("catalog: no layers resolved from weights file")
	}

	c := &Catalog{
		ByName:        make(map[string]*Descriptor, len(offsets)),
		K:             k,
		W:             w,
		PrefetchInput: prefetchInput,
	}

	for name, entries := range offsets {
		if len(entries) == 0 {
			return nil, fmt.Errorf("catalog: layer %q has no fragments", name)
		}
		fragments := make([]Fragment, 0, len(entries))
		layerIndex := entries[0].Index
		for _, e := range entries {
			if e.Index != layerIndex {
				return nil, fmt.Errorf("catalog: layer %q has inconsistent layer_index (%d vs %d)", name, e.Index, layerIndex)
			}
			f := Fragment{Start: e.Start, End: e.End}
			if err := f.validate(); err != nil {
				return nil, fmt.Errorf("catalog: layer %q: %w", name, err)
			}
			fragments = append(fragments, f)
		}
		c.ByName[name] = newDescriptor(name, layerIndex, fragments)
	}

	c.order()
	c.classify()
	return c, nil
}

// order fixes the canonical walk order the scheduler and startup pinning
// both rely on: token_embd first, then blk.0 .. blk.N in numeric order,
// then output_norm, then output_weight, then anything unrecognized. The
// names are collected by map iteration, so the relative order of
// unrecognized names is not deterministic.
func (c *Catalog) order() {
	names := make([]string, 0, len(c.ByName))
	for name := range c.ByName {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		ri, ni := canonicalRank(names[i])
		rj, nj := canonicalRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return ni < nj
	})
	c.Order = names
}

// classify sets IsDynamic on every descriptor by the one rule the
// original prefetch_resident_layer_weights applies uniformly, with no
// name-based special case: a layer is dynamic iff its layer_index is
// >= K. Non-blk layers carry layer_index -1, so they classify as
// resident whenever K > -1 — PrefetchInput governs whether resident
// layers with layer_index -1 are skipped at pinning time
// (coordination.PrefetchResident),
// not whether it counts as dynamic here.
func (c *Catalog) classify() {
	for _, name := range c.Order {
		d := c.ByName[name]
		d.IsDynamic = d.LayerIndex >= c.K
	}
}

// canonicalRank assigns the sort bucket (and, for blk layers, the
// secondary numeric key) used by order. Rank 4 covers both genuinely
// unrecognized names and malformed "blk.X" names whose suffix doesn't
// parse as an integer — both sort after everything recognized.
func canonicalRank(name string) (rank int, secondary int) {
	switch {
	case name == "token_embd":
		return 0, 0
	case strings.HasPrefix(name, "blk."):
		n, err := strconv.Atoi(strings.TrimPrefix(name, "blk."))
		if err != nil {
			return 4, 0
		}
		return 1, n
	case name == "output_norm":
		return 2, 0
	case name == "output_weight":
		return 3, 0
	default:
		return 4, 0
	}
}
