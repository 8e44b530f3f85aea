package stats

import (
	"sync/atomic"
	"time"
)

// Progress holds the counters of one run. The scheduler's worker is the
// only writer; any goroutine may read.
type Progress struct {
	attempted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	batches   atomic.Uint64

	// Per-batch latency, microseconds
	Latency *SafeHistogram
}

func NewProgress() *Progress {
	return &Progress{Latency: NewSafeHistogram()}
}

// Record adds the outcome of one batch. acked is clamped to attempted so
// that succeeded+failed never exceeds attempted.
func (p *Progress) Record(attempted, acked int, took time.Duration) {
	if acked > attempted {
		acked = attempted
	}
	// attempted is bumped first and read last (see Snapshot) so a concurrent
	// reader never sees it lag behind succeeded+failed
	p.attempted.Add(uint64(attempted))
	if attempted > acked {
		p.failed.Add(uint64(attempted - acked))
	}
	if acked > 0 {
		p.succeeded.Add(uint64(acked))
	}
	p.batches.Add(1)
	p.Latency.Observe(took)
}

func (p *Progress) Attempted() uint64 { return p.attempted.Load() }
func (p *Progress) Succeeded() uint64 { return p.succeeded.Load() }
func (p *Progress) Failed() uint64    { return p.failed.Load() }
func (p *Progress) Batches() uint64   { return p.batches.Load() }

// Snapshot is a point-in-time copy for the UI and reports
type Snapshot struct {
	Attempted uint64
	Succeeded uint64
	Failed    uint64
	Batches   uint64

	P50BatchMs float64
	P99BatchMs float64
	MaxBatchMs float64
}

func (p *Progress) Snapshot() Snapshot {
	s := Snapshot{
		Succeeded: p.Succeeded(),
		Failed:    p.Failed(),
		Batches:   p.Batches(),
	}
	s.Attempted = p.Attempted()
	s.P50BatchMs = p.Latency.QuantileMs(50)
	s.P99BatchMs = p.Latency.QuantileMs(99)
	s.MaxBatchMs = p.Latency.MaxMs()
	return s
}

// ErrorRate is the failed share of attempted units, in percent.
func (s Snapshot) ErrorRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return (float64(s.Failed) / float64(s.Attempted)) * 100
}
