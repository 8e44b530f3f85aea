package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testclients/internal/stats"
	"testclients/internal/workload"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewRunRecord(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rep := workload.Report{
		State:    workload.StateFailed,
		Role:     workload.RoleProducer,
		Topic:    "orders",
		Target:   10,
		Snapshot: stats.Snapshot{Attempted: 10, Succeeded: 7, Failed: 3, Batches: 10},
		Started:  started,
		Duration: 1500 * time.Millisecond,
		Err:      errors.New("boom"),
	}
	cfg := workload.Config{PaceInterval: 100 * time.Millisecond, TransactionGroupSize: 5}

	r := NewRunRecord(rep, cfg, "kafka")
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, started, r.Timestamp)
	assert.Equal(t, "FAILED", r.State)
	assert.Equal(t, "boom", r.Error)
	assert.Equal(t, int64(100), r.PaceMs)
	assert.Equal(t, 5, r.GroupSize)
	assert.Equal(t, uint64(7), r.Succeeded)
	assert.Equal(t, int64(1500), r.DurationMs)
}

func TestStoreSaveListGet(t *testing.T) {
	s := openStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		r := NewRunRecord(workload.Report{State: workload.StateCompleted, Topic: "t", Target: i + 1}, workload.Config{}, "http")
		require.NoError(t, s.Save(r))
		ids = append(ids, r.ID)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[2].ID)

	two, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	got, err := s.Get(ids[1])
	require.NoError(t, err)
	assert.Equal(t, 2, got.Target)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(NewRunRecord(workload.Report{Topic: "t"}, workload.Config{}, "kafka")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	all, err := s.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
