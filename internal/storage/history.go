package storage

import (
	"time"

	"github.com/google/uuid"

	"testclients/internal/workload"
)

// RunRecord is the stored summary of one finished run.
type RunRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Role     string `json:"role"`
	Protocol string `json:"protocol"`
	Topic    string `json:"topic"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`

	Target     int     `json:"target"`
	PaceMs     int64   `json:"pace_ms"`
	GroupSize  int     `json:"transaction_group_size,omitempty"`
	Attempted  uint64  `json:"attempted"`
	Succeeded  uint64  `json:"succeeded"`
	Failed     uint64  `json:"failed"`
	Batches    uint64  `json:"batches"`
	P50BatchMs float64 `json:"p50_batch_ms"`
	P99BatchMs float64 `json:"p99_batch_ms"`
	DurationMs int64   `json:"duration_ms"`
}

// NewRunRecord summarizes rep. IDs are UUIDv7 so they sort by creation
// time.
func NewRunRecord(rep workload.Report, cfg workload.Config, protocol string) RunRecord {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	r := RunRecord{
		ID:         id.String(),
		Timestamp:  rep.Started,
		Role:       rep.Role,
		Protocol:   protocol,
		Topic:      rep.Topic,
		State:      rep.State.String(),
		Target:     rep.Target,
		PaceMs:     cfg.PaceInterval.Milliseconds(),
		GroupSize:  cfg.TransactionGroupSize,
		Attempted:  rep.Attempted,
		Succeeded:  rep.Succeeded,
		Failed:     rep.Failed,
		Batches:    rep.Batches,
		P50BatchMs: rep.P50BatchMs,
		P99BatchMs: rep.P99BatchMs,
		DurationMs: rep.Duration.Milliseconds(),
	}
	if rep.Err != nil {
		r.Error = rep.Err.Error()
	}
	return r
}
