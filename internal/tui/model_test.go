package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testclients/internal/stats"
	"testclients/internal/tui/components"
	"testclients/internal/tui/styles"
)

func TestSampleUpdatesStats(t *testing.T) {
	snap := stats.Snapshot{Attempted: 5, Succeeded: 4, Failed: 1, Batches: 5}
	m := NewModel(Run{Title: "producer", Target: 8, Progress: func() stats.Snapshot { return snap }})

	next, cmd := m.Update(tickMsg(time.Now().Add(time.Second)))
	require.NotNil(t, cmd)
	got := next.(Model)

	assert.Equal(t, snap, got.Stats)
	assert.Equal(t, uint64(4), got.LastSucceeded)
	assert.InDelta(t, 0.5, got.percent(), 0.001)
	require.Len(t, got.RateLine.Samples, 1)
	assert.Contains(t, got.View(), "OK:   4 / 8")
}

func TestDoneFinishes(t *testing.T) {
	m := NewModel(Run{Target: 1, Progress: func() stats.Snapshot { return stats.Snapshot{Succeeded: 1} }})
	next, cmd := m.Update(doneMsg{})
	require.NotNil(t, cmd)
	got := next.(Model)
	assert.True(t, got.Finished)
	assert.Equal(t, 1.0, got.percent())
	assert.Contains(t, got.View(), "Run finished")
}

func TestQuitAborts(t *testing.T) {
	aborted := false
	m := NewModel(Run{Target: 1, Abort: func() { aborted = true }})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.True(t, aborted)
	assert.True(t, next.(Model).Aborted)
}

func TestWaitDone(t *testing.T) {
	assert.Nil(t, waitDone(nil))

	done := make(chan struct{})
	close(done)
	assert.Equal(t, doneMsg{}, waitDone(done)())
}

func TestSparklineWindow(t *testing.T) {
	s := components.NewSparkline(4, "rate", styles.Active)
	for i := uint64(0); i < 6; i++ {
		s.Add(i)
	}
	assert.Equal(t, []uint64{2, 3, 4, 5}, s.Samples)

	graph := s.Graph()
	assert.Equal(t, 4, len([]rune(graph)))
	assert.True(t, strings.HasSuffix(graph, "█"))
}
