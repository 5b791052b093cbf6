package coordination

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpcpool/ggml-weight-prefetch/internal/catalog"
	"github.com/rpcpool/ggml-weight-prefetch/internal/pagefile"
	"github.com/rpcpool/ggml-weight-prefetch/internal/telemetry"
)

func newTestRegion(t *testing.T, pages int) *pagefile.Region {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "weights-*.bin")
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(int64(pages*pagefile.PageSize)))

	r, err := pagefile.Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func twoLayerCatalog(t *testing.T, k, w int32) *catalog.Catalog {
	t.Helper()
	offsets := map[string][]catalog.OffsetEntry{
		"token_embd": {{Name: "token_embd.weight", Start: 0, End: 100, Index: -1}},
		"blk.0":      {{Name: "blk.0.attn_q.weight", Start: 100, End: 200, Index: 0}},
	}
	cat, err := catalog.New(offsets, k, w, true)
	require.NoError(t, err)
	return cat
}

func TestPrefetchResidentPinsNonDynamicLayers(t *testing.T) {
	region := newTestRegion(t, 4)
	cat := twoLayerCatalog(t, 1, 1)
	ctx := New(cat, region, telemetry.NewSink(nil), nil)

	ctx.PrefetchResident()

	require.True(t, cat.ByName["token_embd"].Ready())
	require.True(t, cat.ByName["blk.0"].Ready())
}

func TestPrefetchResidentIsIdempotent(t *testing.T) {
	region := newTestRegion(t, 4)
	cat := twoLayerCatalog(t, 1, 1)
	ctx := New(cat, region, telemetry.NewSink(nil), nil)

	ctx.PrefetchResident()
	cat.ByName["token_embd"].SetReady(false)
	ctx.PrefetchResident()

	require.False(t, cat.ByName["token_embd"].Ready(), "second call must be a no-op")
}

func TestPrefetchResidentSkipsTokenEmbdWithoutPrefetchInput(t *testing.T) {
	region := newTestRegion(t, 4)
	offsets := map[string][]catalog.OffsetEntry{
		"token_embd": {{Name: "token_embd.weight", Start: 0, End: 100, Index: -1}},
	}
	cat, err := catalog.New(offsets, 0, 1, false)
	require.NoError(t, err)
	ctx := New(cat, region, telemetry.NewSink(nil), nil)

	ctx.PrefetchResident()
	require.False(t, cat.ByName["token_embd"].Ready())
}

func TestWaitReadyAndNotifyDoneWalkDirections(t *testing.T) {
	region := newTestRegion(t, 4)
	cat := twoLayerCatalog(t, 0, 1)

	nodes := []catalog.Node{
		{Sources: []catalog.Source{{Name: "token_embd.weight"}}},
		{Sources: []catalog.Source{{Name: "blk.0.attn_q.weight"}}},
	}
	ctx := New(cat, region, telemetry.NewSink(nil), nodes)

	cat.ByName["token_embd"].SetReady(true)
	ctx.WaitReady(0) // must not block: already ready

	cat.ByName["token_embd"].SetReady(true)
	ctx.NotifyDone(0)
	require.False(t, cat.ByName["token_embd"].Ready())

	require.True(t, ctx.IsDynamic(1))
	require.False(t, ctx.IsDynamic(0))
}

func TestSyncPrefetchAndSyncEvict(t *testing.T) {
	region := newTestRegion(t, 4)
	cat := twoLayerCatalog(t, 0, 1)
	nodes := []catalog.Node{
		{Sources: []catalog.Source{{Name: "blk.0.attn_q.weight"}}},
	}
	ctx := New(cat, region, telemetry.NewSink(nil), nodes)

	ctx.SyncPrefetch(0)
	require.NoError(t, pagefile.EvictRange(region, 100, 200))
	ctx.SyncEvict(0)
}
