// Package cli renders headless progress and run summaries.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"testclients/internal/stats"
	"testclients/internal/workload"
)

type Header struct {
	Role      string
	Protocol  string
	Endpoint  string
	Topic     string
	Target    int
	Pace      time.Duration
	GroupSize int
}

func PrintHeader(w io.Writer, h Header) {
	fmt.Fprintf(w, "\n🚀 STARTING %s (%s)\n", strings.ToUpper(h.Role), h.Protocol)
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Endpoint   : %s\n", h.Endpoint)
	fmt.Fprintf(w, "Topic      : %s\n", h.Topic)
	fmt.Fprintf(w, "Messages   : %d\n", h.Target)
	if h.Pace > 0 {
		fmt.Fprintf(w, "Delay      : %s\n", h.Pace)
	} else {
		fmt.Fprintf(w, "Delay      : none (burst)\n")
	}
	if h.GroupSize > 0 {
		fmt.Fprintf(w, "Tx size    : %d\n", h.GroupSize)
	}
	fmt.Fprintf(w, "======================================================================\n\n")
}

// Monitor redraws a progress line every interval until ctx is done.
func Monitor(ctx context.Context, w io.Writer, progress func() stats.Snapshot, target int, interval time.Duration) {
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprint(w, progressLine(progress(), target, time.Since(start)), "\n")
			return
		case <-ticker.C:
			fmt.Fprint(w, progressLine(progress(), target, time.Since(start)))
		}
	}
}

func progressLine(s stats.Snapshot, target int, elapsed time.Duration) string {
	pct := 0.0
	if target > 0 {
		pct = float64(s.Succeeded) / float64(target)
	}
	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(s.Succeeded) / elapsed.Seconds()
	}
	return fmt.Sprintf("\r%s %3.0f%% | %s | %d/%d | Rate: %.1f/s | Err: %d",
		progressBar(pct, 20), pct*100,
		elapsed.Round(time.Second),
		s.Succeeded, target,
		rate,
		s.Failed,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func PrintSummary(w io.Writer, rep workload.Report) {
	rate := 0.0
	if rep.Duration.Seconds() > 0 {
		rate = float64(rep.Succeeded) / rep.Duration.Seconds()
	}

	icon := "✅"
	if rep.State != workload.StateCompleted {
		icon = "❌"
	}

	fmt.Fprintf(w, "\n📊 %s RESULTS\n", strings.ToUpper(rep.Role))
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "State          : %s %s\n", icon, rep.State)
	fmt.Fprintf(w, "Total Duration : %s\n", rep.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Succeeded      : %d of %d\n", rep.Succeeded, rep.Target)
	fmt.Fprintf(w, "Attempted      : %d\n", rep.Attempted)
	fmt.Fprintf(w, "Failed         : %d (%.1f%%)\n", rep.Failed, rep.ErrorRate())
	fmt.Fprintf(w, "Batches        : %d\n", rep.Batches)
	fmt.Fprintf(w, "Actual Rate    : %.2f/s\n", rate)
	fmt.Fprintf(w, "\n⏱️  BATCH TIMES (ms)\n")
	fmt.Fprintf(w, "   P50 : %.2f\n", rep.P50BatchMs)
	fmt.Fprintf(w, "   P99 : %.2f\n", rep.P99BatchMs)
	fmt.Fprintf(w, "   Max : %.2f\n", rep.MaxBatchMs)
	if rep.Err != nil {
		fmt.Fprintf(w, "\n❌ FAILURE\n   %v\n", rep.Err)
	}
	fmt.Fprintf(w, "======================================================================\n")
}
