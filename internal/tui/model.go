// Package tui shows a live dashboard for a single run.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"testclients/internal/stats"
	"testclients/internal/tui/components"
	"testclients/internal/tui/styles"
)

const (
	tickInterval = 200 * time.Millisecond
)

type tickMsg time.Time

type doneMsg struct{}

// Run describes what the dashboard watches.
type Run struct {
	Title    string
	Topic    string
	Target   int
	Progress func() stats.Snapshot
	// Closed once the run reached a terminal state
	Done <-chan struct{}
	// Called when the user quits early
	Abort func()
}

type Model struct {
	run Run

	Stats    stats.Snapshot
	Progress progress.Model

	RateLine    components.Sparkline
	LatencyLine components.Sparkline

	StartTime     time.Time
	LastUpdate    time.Time
	LastSucceeded uint64

	Finished bool
	Aborted  bool
	Width    int
	Height   int
}

func NewModel(run Run) Model {
	now := time.Now()
	return Model{
		run:         run,
		Progress:    progress.New(progress.WithDefaultGradient()),
		RateLine:    components.NewSparkline(40, "Messages/s", styles.Active),
		LatencyLine: components.NewSparkline(40, "Batch P99 (ms)", styles.Warn),
		StartTime:   now,
		LastUpdate:  now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitDone(m.run.Done))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 6
		if half < 10 {
			half = 10
		}
		m.RateLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.Aborted = true
			if m.run.Abort != nil {
				m.run.Abort()
			}
			return m, tea.Quit
		}

	case tickMsg:
		m = m.sample(time.Time(msg))
		return m, tea.Batch(m.Progress.SetPercent(m.percent()), tickCmd())

	case doneMsg:
		m = m.sample(time.Now())
		m.Finished = true
		return m, tea.Sequence(m.Progress.SetPercent(m.percent()), tea.Quit)

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) sample(now time.Time) Model {
	if m.run.Progress == nil {
		return m
	}
	snap := m.run.Progress()

	dt := now.Sub(m.LastUpdate).Seconds()
	if dt < 0.01 {
		dt = 0.01
	}
	if snap.Succeeded >= m.LastSucceeded {
		m.RateLine.Add(uint64(float64(snap.Succeeded-m.LastSucceeded) / dt))
	}
	m.LatencyLine.Add(uint64(snap.P99BatchMs))

	m.Stats = snap
	m.LastSucceeded = snap.Succeeded
	m.LastUpdate = now
	return m
}

func (m Model) percent() float64 {
	if m.run.Target <= 0 {
		return 0
	}
	pct := float64(m.Stats.Succeeded) / float64(m.run.Target)
	if pct > 1.0 {
		pct = 1.0
	}
	return pct
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render(m.run.Title))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("Topic: %s | Elapsed: %s",
		m.run.Topic, time.Since(m.StartTime).Round(time.Second))))
	s.WriteString("\n\n")

	errStyle := styles.Active
	switch rate := m.Stats.ErrorRate(); {
	case rate > 5.0:
		errStyle = styles.Error
	case rate > 0:
		errStyle = styles.Warn
	}

	col1 := fmt.Sprintf("OK:   %d / %d\nSENT: %d", m.Stats.Succeeded, m.run.Target, m.Stats.Attempted)
	col2 := fmt.Sprintf("ERR:  %.2f%%\nFAIL: %d", m.Stats.ErrorRate(), m.Stats.Failed)
	col3 := fmt.Sprintf("BATCHES: %d\nP50:     %.2f ms", m.Stats.Batches, m.Stats.P50BatchMs)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(styles.Value.Render(col1)),
		styles.Box.Render(errStyle.Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RateLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	s.WriteString("\n")
	switch {
	case m.Finished:
		s.WriteString(styles.Success.Render("Run finished"))
	case m.Aborted:
		s.WriteString(styles.Error.Render("Aborted"))
	default:
		s.WriteString(styles.RenderKey("q", "abort"))
	}
	s.WriteString("\n")

	return s.String()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitDone(done <-chan struct{}) tea.Cmd {
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		<-done
		return doneMsg{}
	}
}

// Show runs the dashboard until the run finishes or the user quits.
func Show(run Run) error {
	_, err := tea.NewProgram(NewModel(run), tea.WithAltScreen()).Run()
	return err
}
