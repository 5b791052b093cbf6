// Package coordination is the compute-side API the graph execution loop
// calls into: wait_ready/notify_done bracket every node's consumption of
// its layer's weights, sync_prefetch/sync_evict give a blocking
// alternative when dynamic scheduling is disabled for a layer, and
// is_dynamic/PrefetchResident round out the startup and per-node
// control surface.
package coordination

import (
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/rpcpool/ggml-weight-prefetch/internal/catalog"
	"github.com/rpcpool/ggml-weight-prefetch/internal/pagefile"
	"github.com/rpcpool/ggml-weight-prefetch/internal/telemetry"
)

// Context is the Go-native shape of the reference runtime's opaque
// prefetch-context handle: a typed struct instead of a void*, returned
// by New and threaded through the graph execution loop.
type Context struct {
	Cat    *catalog.Catalog
	Region *pagefile.Region
	Sink   *telemetry.Sink
	Nodes  []catalog.Node

	pinOnce sync.Once
}

// New builds a coordination Context over an already-constructed
// catalogue, region, telemetry sink and the graph's node list.
func New(cat *catalog.Catalog, region *pagefile.Region, sink *telemetry.Sink, nodes []catalog.Node) *Context {
	return &Context{Cat: cat, Region: region, Sink: sink, Nodes: nodes}
}

// target locates the layer a node forward/backward walk resolves to. A
// non-empty resolved name that isn't in the catalogue is a precondition
// violation — abort, per the resolver/catalogue invariant that no
// unknown non-empty name may flow into this API.
func (c *Context) target(name string) *catalog.Descriptor {
	if name == "" {
		return nil
	}
	d, ok := c.Cat.ByName[name]
	if !ok {
		klog.Fatalf("coordination: resolver returned unknown layer name %q", name)
	}
	return d
}

func (c *Context) forward(n int) *catalog.Descriptor {
	for i := n; i < len(c.Nodes); i++ {
		if name := catalog.ResolveLayerName(c.Nodes[i]); name != "" {
			return c.target(name)
		}
	}
	return nil
}

func (c *Context) backward(n int) *catalog.Descriptor {
	for i := n; i >= 0; i-- {
		if name := catalog.ResolveLayerName(c.Nodes[i]); name != "" {
			return c.target(name)
		}
	}
	return nil
}

// WaitReady walks forward from node n and spins on the target layer's
// ready flag (acquire ordering) until true. Called immediately before
// executing node n. No-op if no layer is found.
func (c *Context) WaitReady(n int) {
	d := c.forward(n)
	if d == nil {
		return
	}
	for !d.Ready() {
		// Busy-wait: the scheduler is expected to catch up within a few
		// page-fault-sized delays. A park/unpark primitive could replace
		// this without weakening the acquire/release ordering.
	}
}

// NotifyDone walks backward from node n (toward node 0) and releases the
// target layer's ready flag. Called after node n completes.
func (c *Context) NotifyDone(n int) {
	d := c.backward(n)
	if d == nil {
		return
	}
	d.SetReady(false)
}

// SyncPrefetch walks forward from n and synchronously prefetches every
// fragment of the target layer, for callers that disabled dynamic
// scheduling for it or want a blocking prefetch.
func (c *Context) SyncPrefetch(n int) {
	d := c.forward(n)
	if d == nil {
		return
	}
	start := time.Now()
	var total int64
	for _, f := range d.Fragments {
		got, err := pagefile.PrefetchRange(c.Region, int64(f.Start), int64(f.End), pagefile.DefaultFanout)
		if err != nil {
			c.Sink.Degraded("sync_prefetch", d.Name, err)
			continue
		}
		total += got
	}
	c.Sink.Prefetched(d.Name, total, time.Since(start))
}

// SyncEvict walks backward from n and synchronously evicts the target
// layer.
func (c *Context) SyncEvict(n int) {
	d := c.backward(n)
	if d == nil {
		return
	}
	start := time.Now()
	var total int64
	for _, f := range d.Fragments {
		total += int64(f.End - f.Start)
		if err := pagefile.EvictRange(c.Region, int64(f.Start), int64(f.End)); err != nil {
			c.Sink.Degraded("sync_evict", d.Name, err)
		}
	}
	c.Sink.Evicted(d.Name, total, time.Since(start))
}

// IsDynamic walks forward from n and reports whether the target layer
// is dynamic. Returns false if no layer is found at or after n.
func (c *Context) IsDynamic(n int) bool {
	d := c.forward(n)
	return d != nil && d.IsDynamic
}

// PrefetchResident runs at most once per Context: synchronously
// prefetches and marks ready every resident (non-dynamic) layer, except
// layers carrying layer_index -1 when PrefetchInput is false. The latch
// is the Context's own sync.Once, so a second Context built over the same
// catalogue runs its own pinning pass. Relaxed ordering would suffice —
// no scheduler goroutine observes this path, it runs before one is ever
// started — though SetReady's atomic store is sequentially consistent.
func (c *Context) PrefetchResident() {
	c.pinOnce.Do(func() {
		for _, name := range c.Cat.Order {
			d := c.Cat.ByName[name]
			if d.IsDynamic {
				continue
			}
			if d.LayerIndex == -1 && !c.Cat.PrefetchInput {
				continue
			}
			c.pinLayer(d)
		}
	})
}

func (c *Context) pinLayer(d *catalog.Descriptor) {
	start := time.Now()
	var total int64
	for _, f := range d.Fragments {
		got, err := pagefile.PrefetchRange(c.Region, int64(f.Start), int64(f.End), pagefile.DefaultFanout)
		if err != nil {
			c.Sink.Degraded("prefetch_resident", d.Name, err)
			continue
		}
		total += got
	}
	d.SetReady(true)
	c.Sink.Prefetched(d.Name, total, time.Since(start))
}
