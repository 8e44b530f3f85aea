package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Sparkline is a one-line scrolling chart of the last Width samples,
// scaled to the largest visible sample.
type Sparkline struct {
	Samples []uint64
	Width   int
	Label   string
	Style   lipgloss.Style
}

func NewSparkline(width int, label string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Width:   width,
		Label:   label,
		Style:   style,
		Samples: make([]uint64, 0, width),
	}
}

func (s *Sparkline) Add(val uint64) {
	s.Samples = append(s.Samples, val)
	if s.Width > 0 && len(s.Samples) > s.Width {
		s.Samples = s.Samples[len(s.Samples)-s.Width:]
	}
}

func (s Sparkline) peak() uint64 {
	var peak uint64
	for _, v := range s.Samples {
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Graph renders the bars without label or style.
func (s Sparkline) Graph() string {
	if s.Width <= 0 {
		return ""
	}
	samples := s.Samples
	if len(samples) > s.Width {
		samples = samples[len(samples)-s.Width:]
	}

	peak := s.peak()
	var b strings.Builder
	for _, v := range samples {
		if peak == 0 {
			b.WriteString(levels[0])
			continue
		}
		idx := int(float64(v) / float64(peak) * float64(len(levels)-1))
		b.WriteString(levels[min(max(idx, 0), len(levels)-1)])
	}
	if pad := s.Width - len(samples); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	return b.String()
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}
	return s.Style.Render(s.Label) + "\n" + s.Style.Render(s.Graph())
}
