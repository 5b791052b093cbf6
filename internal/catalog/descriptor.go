package catalog

import "sync/atomic"

// Descriptor describes one named layer: its fragments in the weights
// file, its dynamic/resident classification, and the single-writer-at-a-
// time ready flag that is the handshake between the prefetch scheduler
// and the compute thread.
//
// Transition table for ready (see spec §4.7/§5 — this is the invariant
// the whole producer/consumer protocol rests on):
//
//	false -> true   written only by the scheduler, with release ordering,
//	                and only while the scheduler itself still considers
//	                the layer not in flight (so this transition can never
//	                race with itself across scheduler iterations).
//	true -> false   written only by the compute thread's NotifyDone, with
//	                release ordering, and only after WaitReady has
//	                observed true for that layer (so it can never race
//	                with the scheduler's false->true transition either).
//
// Because the two writers only ever flip the flag in the direction the
// other side is not currently touching, there is no data race to guard
// against beyond using atomic load/store with at least acquire/release
// ordering — Go's atomic.Bool gives sequentially consistent ordering,
// which satisfies that with room to spare.
type Descriptor struct {
	Name       string
	LayerIndex int32
	Fragments  []Fragment

	// IsDynamic is set once by Catalog.classify and never written again;
	// safe to read without synchronization afterward.
	IsDynamic bool

	ready atomic.Bool
}

// Ready reports whether the layer's pages are currently resident — the
// scheduler has prefetched them and not yet been told to evict them.
// Acquire ordering: a true observation happens-after the scheduler's
// release store that made it so.
func (d *Descriptor) Ready() bool { return d.ready.Load() }

// SetReady transitions the ready flag with release ordering. Callers must
// respect the transition table above: only the scheduler sets true, only
// the compute thread (via NotifyDone) sets false.
func (d *Descriptor) SetReady(v bool) { d.ready.Store(v) }

func newDescriptor(name string, layerIndex int32, fragments []Fragment) *Descriptor {
	return &Descriptor{
		Name:       name,
		LayerIndex: layerIndex,
		Fragments:  fragments,
	}
}
