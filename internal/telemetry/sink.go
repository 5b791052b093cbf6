// Package telemetry is the engine's single write-only log fd plus the
// Prometheus metrics recorded alongside every call into it.
package telemetry

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// Sink wraps a single write-only file descriptor. Writes are free-form
// ASCII lines, one per call. A failed write is logged once via klog and
// telemetry is silently dropped thereafter — the engine must never block
// or abort on a broken log fd.
type Sink struct {
	mu       sync.Mutex
	w        *os.File
	degraded bool
}

// NewSink wraps an already-open file descriptor (the "offline_logfd" from
// the side-channel catalogue). A nil file is valid and turns Sink into a
// pure metrics-only no-op writer, useful for tests and for callers that
// don't want the free-form trace.
func NewSink(w *os.File) *Sink {
	return &Sink{w: w}
}

func (s *Sink) writeLine(line string) {
	if s.w == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return
	}
	if _, err := fmt.Fprintln(s.w, line); err != nil {
		klog.Warningf("telemetry: log fd write failed, disabling further telemetry writes: %v", err)
		s.degraded = true
	}
}

// Prefetched records a completed prefetch of one layer (all of its
// fragments): a free-form log line plus the prefetch duration histogram
// and the cumulative bytes counter.
func (s *Sink) Prefetched(layer string, bytes int64, d time.Duration) {
	bw := float64(bytes) / d.Seconds()
	s.writeLine(fmt.Sprintf("prefetch layer=%s bytes=%s dur=%s bw=%s/s",
		layer, humanize.IBytes(uint64(bytes)), d, humanize.IBytes(uint64(bw))))

	prefetchDuration.Observe(d.Seconds())
	prefetchBytes.Add(float64(bytes))
}

// Evicted records a completed eviction of one layer (all of its
// fragments).
func (s *Sink) Evicted(layer string, bytes int64, d time.Duration) {
	s.writeLine(fmt.Sprintf("evict layer=%s bytes=%s dur=%s", layer, humanize.IBytes(uint64(bytes)), d))
	evictDuration.Observe(d.Seconds())
}

// Degraded records a non-fatal mapping or advise failure: the log line
// plus the degraded-mode counter, so operators can alert on a rising
// rate of demand-paged prefetches without scraping klog.
func (s *Sink) Degraded(op string, layer string, err error) {
	s.writeLine(fmt.Sprintf("degraded op=%s layer=%s err=%v", op, layer, err))
	klog.Warningf("telemetry: degraded %s for layer %s: %v", op, layer, err)
	degradedTotal.WithLabelValues(op).Inc()
}

// SetInFlight reports the scheduler's current in_flight window occupancy.
func SetInFlight(n int) {
	inFlightWindow.Set(float64(n))
}

// Close closes the underlying fd, if any.
func (s *Sink) Close() error {
	if s.w == nil {
		return nil
	}
	return s.w.Close()
}
