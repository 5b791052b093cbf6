// Package scheduler runs the background prefetch producer: a single
// goroutine walking the catalogue in execution order, maintaining a
// sliding window of at most W prefetched-but-unconsumed dynamic layers.
package scheduler

import (
	"math/rand"
	"time"

	"k8s.io/klog/v2"

	"github.com/rpcpool/ggml-weight-prefetch/internal/catalog"
	"github.com/rpcpool/ggml-weight-prefetch/internal/pagefile"
	"github.com/rpcpool/ggml-weight-prefetch/internal/telemetry"
)

// Scheduler walks catalog.Order once, prefetching dynamic layers ahead
// of the compute thread and evicting them once notify_done has released
// them, bounding the in-flight set to at most Cat.W layers.
type Scheduler struct {
	Cat    *catalog.Catalog
	Region *pagefile.Region
	Sink   *telemetry.Sink

	// StopCh, when closed, aborts the scheduler at the next spin or loop
	// iteration instead of spinning indefinitely on a dead compute thread.
	StopCh chan struct{}

	inFlight []string
}

// New builds a Scheduler for the given catalogue, region and sink. StopCh
// may be nil, in which case the scheduler runs to completion with no way
// to abort early — callers that want graceful shutdown should pass one.
func New(cat *catalog.Catalog, region *pagefile.Region, sink *telemetry.Sink, stopCh chan struct{}) *Scheduler {
	return &Scheduler{
		Cat:    cat,
		Region: region,
		Sink:   sink,
		StopCh: stopCh,
	}
}

func (s *Scheduler) stopped() bool {
	if s.StopCh == nil {
		return false
	}
	select {
	case <-s.StopCh:
		return true
	default:
		return false
	}
}

// Run executes the scheduler loop to completion: prefetch every dynamic
// layer in order within the window, drain the window once the cursor
// reaches the end, then return. Run is intended to be the body of the
// one dedicated scheduler goroutine; it is not safe to call concurrently
// with itself over the same Scheduler.
func (s *Scheduler) Run() {
	i := 0
	for {
		if s.stopped() {
			klog.V(2).Infof("scheduler: stop requested with %d in-flight layers", len(s.inFlight))
			s.drain()
			return
		}
		if i >= len(s.Cat.Order) {
			s.drain()
			return
		}

		name := s.Cat.Order[i]
		d := s.Cat.ByName[name]
		if !d.IsDynamic {
			i++
			continue
		}

		if len(s.inFlight) < int(s.Cat.W) {
			s.prefetchLayer(d)
			i++
			continue
		}

		if !s.evictReleased() {
			backoff()
		}
	}
}

// prefetchLayer issues prefetch_range over every fragment of d, marks it
// ready with release ordering, and appends it to the in-flight window.
func (s *Scheduler) prefetchLayer(d *catalog.Descriptor) {
	start := time.Now()
	var total int64
	for _, f := range d.Fragments {
		n, err := pagefile.PrefetchRange(s.Region, int64(f.Start), int64(f.End), pagefile.DefaultFanout)
		if err != nil {
			s.Sink.Degraded("prefetch", d.Name, err)
			continue
		}
		total += n
	}
	d.SetReady(true)
	s.inFlight = append(s.inFlight, d.Name)
	telemetry.SetInFlight(len(s.inFlight))
	s.Sink.Prefetched(d.Name, total, time.Since(start))
}

// evictReleased scans in_flight front-to-back for layers the compute
// thread has released (ready observed false), evicts each one's
// fragments, and removes it from the window. Reports whether the window
// dropped below W after the scan.
func (s *Scheduler) evictReleased() bool {
	remaining := s.inFlight[:0]
	for _, name := range s.inFlight {
		d := s.Cat.ByName[name]
		if d.Ready() {
			remaining = append(remaining, name)
			continue
		}
		s.evictLayer(d)
	}
	s.inFlight = remaining
	telemetry.SetInFlight(len(s.inFlight))
	return len(s.inFlight) < int(s.Cat.W)
}

func (s *Scheduler) evictLayer(d *catalog.Descriptor) {
	start := time.Now()
	var total int64
	for _, f := range d.Fragments {
		total += int64(f.End - f.Start)
		if err := pagefile.EvictRange(s.Region, int64(f.Start), int64(f.End)); err != nil {
			s.Sink.Degraded("evict", d.Name, err)
		}
	}
	s.Sink.Evicted(d.Name, total, time.Since(start))
}

// drain repeats the eviction scan until in_flight is empty or StopCh
// fires, then returns — the scheduler's last act before its goroutine
// exits and the catalogue it owns becomes eligible for teardown.
func (s *Scheduler) drain() {
	for len(s.inFlight) > 0 {
		if s.stopped() {
			klog.Warningf("scheduler: stopped with %d layers still in flight", len(s.inFlight))
			return
		}
		if !s.evictReleased() {
			backoff()
		}
	}
}

// backoff sleeps a small jittered interval between spin iterations
// instead of a tight spin loop; Run rechecks StopCh on the next outer
// loop iteration either way, so the jitter just bounds how late a stop
// request is noticed.
func backoff() {
	const base = 200 * time.Microsecond
	d := base + time.Duration(rand.Int63n(int64(base)))
	t := time.NewTimer(d)
	defer t.Stop()
	<-t.C
}
