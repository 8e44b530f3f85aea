package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressRecord(t *testing.T) {
	p := NewProgress()
	p.Record(5, 5, 2*time.Millisecond)
	p.Record(3, 1, 4*time.Millisecond)
	p.Record(0, 0, time.Millisecond)

	s := p.Snapshot()
	assert.EqualValues(t, 8, s.Attempted)
	assert.EqualValues(t, 6, s.Succeeded)
	assert.EqualValues(t, 2, s.Failed)
	assert.EqualValues(t, 3, s.Batches)
	assert.InDelta(t, 25.0, s.ErrorRate(), 0.001)
	assert.InDelta(t, 4.0, s.MaxBatchMs, 0.01)
}

func TestProgressClampsAcked(t *testing.T) {
	p := NewProgress()
	p.Record(2, 7, 0)
	assert.EqualValues(t, 2, p.Succeeded())
	assert.Zero(t, p.Failed())
}

func TestErrorRateEmpty(t *testing.T) {
	assert.Zero(t, Snapshot{}.ErrorRate())
}

// Readers racing the single writer must never observe more outcomes than
// attempts.
func TestSnapshotOrdering(t *testing.T) {
	p := NewProgress()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			p.Record(1, i%2, time.Microsecond)
		}
	}()

	for i := 0; i < 5000; i++ {
		s := p.Snapshot()
		require.LessOrEqual(t, s.Succeeded+s.Failed, s.Attempted)
	}
	wg.Wait()
}

func TestHistogramClamps(t *testing.T) {
	h := NewSafeHistogram()
	h.Observe(0)
	h.Observe(time.Hour)
	assert.EqualValues(t, 2, h.Count())
	assert.InDelta(t, (10 * time.Minute).Seconds()*1000, h.MaxMs(), 1000)
}
