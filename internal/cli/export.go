package cli

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"testclients/internal/storage"
)

// ExportCSV writes runs as CSV, one row per run.
func ExportCSV(w io.Writer, runs []storage.RunRecord) error {
	cw := csv.NewWriter(w)

	header := []string{
		"id", "timestamp", "role", "protocol", "topic", "state",
		"target", "attempted", "succeeded", "failed", "batches",
		"p50BatchMs", "p99BatchMs", "durationMs", "error",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range runs {
		row := []string{
			r.ID,
			strconv.FormatInt(r.Timestamp.UnixMilli(), 10),
			r.Role,
			r.Protocol,
			r.Topic,
			r.State,
			strconv.Itoa(r.Target),
			strconv.FormatUint(r.Attempted, 10),
			strconv.FormatUint(r.Succeeded, 10),
			strconv.FormatUint(r.Failed, 10),
			strconv.FormatUint(r.Batches, 10),
			strconv.FormatFloat(r.P50BatchMs, 'f', 2, 64),
			strconv.FormatFloat(r.P99BatchMs, 'f', 2, 64),
			strconv.FormatInt(r.DurationMs, 10),
			r.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ExportJSON(w io.Writer, runs []storage.RunRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(runs)
}

// PrintHistory writes a compact table of runs.
func PrintHistory(w io.Writer, runs []storage.RunRecord) {
	if len(runs) == 0 {
		io.WriteString(w, "no runs recorded\n")
		return
	}
	for _, r := range runs {
		io.WriteString(w, r.Timestamp.Format("2006-01-02 15:04:05")+"  "+
			pad(r.Role, 8)+" "+pad(r.Protocol, 5)+" "+pad(r.State, 9)+" "+
			strconv.FormatUint(r.Succeeded, 10)+"/"+strconv.Itoa(r.Target)+"  "+r.Topic+"\n")
	}
}

func pad(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}
