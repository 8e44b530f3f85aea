package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testclients/internal/stats"
	"testclients/internal/storage"
	"testclients/internal/workload"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[----------]", progressBar(0, 10))
	assert.Equal(t, "[█████-----]", progressBar(0.5, 10))
	assert.Equal(t, "[██████████]", progressBar(1.7, 10))
	assert.Equal(t, "[----------]", progressBar(-1, 10))
}

func TestProgressLine(t *testing.T) {
	line := progressLine(stats.Snapshot{Succeeded: 5, Failed: 1}, 10, 2*time.Second)
	assert.Contains(t, line, " 50%")
	assert.Contains(t, line, "5/10")
	assert.Contains(t, line, "Rate: 2.5/s")
	assert.Contains(t, line, "Err: 1")
}

func TestMonitorPrintsFinalLine(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	Monitor(ctx, &buf, func() stats.Snapshot { return stats.Snapshot{Succeeded: 3} }, 3, 5*time.Millisecond)
	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, "100%")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, workload.Report{
		State:    workload.StateFailed,
		Role:     workload.RoleConsumer,
		Target:   10,
		Snapshot: stats.Snapshot{Attempted: 4, Succeeded: 4},
		Duration: 2 * time.Second,
		Err:      errors.New("timed out"),
	})
	out := buf.String()
	assert.Contains(t, out, "CONSUMER RESULTS")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "4 of 10")
	assert.Contains(t, out, "timed out")
}

func TestExportCSV(t *testing.T) {
	runs := []storage.RunRecord{
		{ID: "a", Role: "producer", Protocol: "kafka", Topic: "t", State: "COMPLETED", Target: 3, Succeeded: 3},
		{ID: "b", Role: "consumer", Protocol: "http", Topic: "t", State: "FAILED", Target: 3, Error: "boom, again"},
	}
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, runs))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "boom, again", rows[2][len(rows[2])-1])
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	PrintHistory(&buf, nil)
	assert.Equal(t, "no runs recorded\n", buf.String())

	buf.Reset()
	PrintHistory(&buf, []storage.RunRecord{{Role: "producer", Protocol: "kafka", State: "COMPLETED", Succeeded: 2, Target: 2, Topic: "orders"}})
	assert.Contains(t, buf.String(), "2/2  orders")
}
