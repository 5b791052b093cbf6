package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fourLayerBlkOffsets() map[string][]OffsetEntry {
	return map[string][]OffsetEntry{
		"blk.0": {{Name: "blk.0.attn_q.weight", Start: 0, End: 100, Index: 0}},
		"blk.1": {{Name: "blk.1.attn_q.weight", Start: 100, End: 200, Index: 1}},
		"blk.2": {{Name: "blk.2.attn_q.weight", Start: 200, End: 300, Index: 2}},
		"blk.3": {{Name: "blk.3.attn_q.weight", Start: 300, End: 400, Index: 3}},
	}
}

// Invariant 1: every descriptor appears in order exactly once.
func TestCatalogOrderContainsEveryDescriptorOnce(t *testing.T) {
	c, err := New(fourLayerBlkOffsets(), 0, 1, false)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, name := range c.Order {
		seen[name]++
	}
	require.Len(t, c.Order, len(c.ByName))
	for name, n := range seen {
		require.Equal(t, 1, n, "layer %q appeared %d times in order", name, n)
	}
}

// Dynamic classification at construction time: S2's K=0, W=1 model
// classifies every blk layer as dynamic, none resident.
func TestCatalogClassifyAllDynamicWhenKZero(t *testing.T) {
	c, err := New(fourLayerBlkOffsets(), 0, 1, false)
	require.NoError(t, err)

	for _, name := range c.Order {
		require.True(t, c.ByName[name].IsDynamic, "layer %q should be dynamic", name)
	}
}

// classify applies layer_index >= K uniformly: non-blk layers carry
// layer_index -1, so at K=2 they classify resident right alongside
// blk.0/blk.1, with no name-based special case.
func TestCatalogClassifyResidentPrefix(t *testing.T) {
	offsets := fourLayerBlkOffsets()
	offsets["token_embd"] = []OffsetEntry{{Name: "token_embd.weight", Start: 400, End: 500, Index: -1}}
	offsets["output_norm"] = []OffsetEntry{{Name: "output_norm.weight", Start: 500, End: 600, Index: -1}}
	offsets["output_weight"] = []OffsetEntry{{Name: "output.weight", Start: 600, End: 700, Index: -1}}

	c, err := New(offsets, 2, 2, false)
	require.NoError(t, err)

	require.False(t, c.ByName["token_embd"].IsDynamic)
	require.False(t, c.ByName["blk.0"].IsDynamic)
	require.False(t, c.ByName["blk.1"].IsDynamic)
	require.True(t, c.ByName["blk.2"].IsDynamic)
	require.True(t, c.ByName["blk.3"].IsDynamic)
	require.False(t, c.ByName["output_norm"].IsDynamic)
	require.False(t, c.ByName["output_weight"].IsDynamic)
}

// PrefetchInput governs whether PrefetchResident pins a resident
// token_embd at startup, not whether classify marks it dynamic: with
// K=2, token_embd (layer_index -1) is resident regardless of
// PrefetchInput.
func TestCatalogClassifyIgnoresPrefetchInput(t *testing.T) {
	offsets := fourLayerBlkOffsets()
	offsets["token_embd"] = []OffsetEntry{{Name: "token_embd.weight", Start: 400, End: 500, Index: -1}}

	c, err := New(offsets, 2, 2, true)
	require.NoError(t, err)
	require.False(t, c.ByName["token_embd"].IsDynamic)
}

// S1: catalogue {token_embd: -1, blk.0: 0, output_norm: -1, output_weight: -1},
// K=999, W=1, prefetch_input=true must classify all four layers
// resident, since neither -1 >= 999 nor 0 >= 999 holds.
func TestCatalogClassifyS1AllResidentWhenKHuge(t *testing.T) {
	offsets := map[string][]OffsetEntry{
		"token_embd":    {{Name: "token_embd.weight", Start: 0, End: 100, Index: -1}},
		"blk.0":         {{Name: "blk.0.attn_q.weight", Start: 100, End: 200, Index: 0}},
		"output_norm":   {{Name: "output_norm.weight", Start: 200, End: 300, Index: -1}},
		"output_weight": {{Name: "output.weight", Start: 300, End: 400, Index: -1}},
	}
	c, err := New(offsets, 999, 1, true)
	require.NoError(t, err)

	for _, name := range c.Order {
		require.False(t, c.ByName[name].IsDynamic, "layer %q should be resident", name)
	}
}

// Invariant 4 of the testable properties, sort stability (catalogue.order):
// token_embd, blk.0..blk.N, output_norm, output_weight, filtered to
// present layers.
func TestCatalogOrderCanonical(t *testing.T) {
	offsets := fourLayerBlkOffsets()
	offsets["token_embd"] = []OffsetEntry{{Name: "token_embd.weight", Start: 400, End: 500, Index: -1}}
	offsets["output_norm"] = []OffsetEntry{{Name: "output_norm.weight", Start: 500, End: 600, Index: -1}}
	offsets["output_weight"] = []OffsetEntry{{Name: "output.weight", Start: 600, End: 700, Index: -1}}

	c, err := New(offsets, 0, 1, false)
	require.NoError(t, err)

	require.Equal(t, []string{
		"token_embd", "blk.0", "blk.1", "blk.2", "blk.3", "output_norm", "output_weight",
	}, c.Order)
}

func TestCatalogRejectsNonPositiveWindow(t *testing.T) {
	_, err := New(fourLayerBlkOffsets(), 0, 0, false)
	require.Error(t, err)
}

func TestCatalogRejectsNegativeK(t *testing.T) {
	_, err := New(fourLayerBlkOffsets(), -1, 1, false)
	require.Error(t, err)
}

func TestCatalogRejectsEmptyOffsets(t *testing.T) {
	_, err := New(nil, 0, 1, false)
	require.Error(t, err)
}

func TestCatalogRejectsInvalidFragment(t *testing.T) {
	offsets := map[string][]OffsetEntry{
		"blk.0": {{Name: "blk.0.attn_q.weight", Start: 100, End: 100, Index: 0}},
	}
	_, err := New(offsets, 0, 1, false)
	require.Error(t, err)
}

func TestCatalogRejectsInconsistentIndex(t *testing.T) {
	offsets := map[string][]OffsetEntry{
		"blk.0": {
			{Name: "blk.0.attn_q.weight", Start: 0, End: 100, Index: 0},
			{Name: "blk.0.attn_k.weight", Start: 100, End: 200, Index: 1},
		},
	}
	_, err := New(offsets, 0, 1, false)
	require.Error(t, err)
}
