package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"dotsnatch-go/internal/types"
)

const seriesHeader = "seq, timestamp, found, x, y, confidence, zone, stale"

// SeriesPath is the CSV file that WriteSeries appends to for one run.
func SeriesPath(outputDir, runTimestamp string) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s_detections.txt", runTimestamp))
}

// WriteSeries appends events to the run's detection series, writing the
// header when the file is new.
func WriteSeries(outputDir string, runTimestamp string, events []types.DetectionEvent) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(SeriesPath(outputDir, runTimestamp), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}

	w := bufio.NewWriter(f)
	if info.Size() == 0 {
		_, _ = fmt.Fprintln(w, seriesHeader)
	}
	for _, ev := range events {
		_, _ = fmt.Fprintf(
			w,
			"%d, %.6f, %t, %d, %d, %.3f, %s, %t\n",
			ev.Seq,
			ev.Timestamp,
			ev.Found,
			ev.X,
			ev.Y,
			ev.Confidence,
			ev.Zone,
			ev.Stale,
		)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
