package output

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"dotsnatch-go/internal/types"
)

func TestRawLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRawLogWriter(dir, "events")
	if err != nil {
		t.Fatalf("NewRawLogWriter error: %v", err)
	}
	events := []types.DetectionEvent{
		{Type: "detection", SessionID: "s", Seq: 1, Found: true, X: 10, Y: 20, Confidence: 55.5, Zone: "left", Seeds: 3},
		{Type: "detection", SessionID: "s", Seq: 2, X: -1, Y: -1, Confidence: -1, Zone: "none", Stale: true},
	}
	for _, ev := range events {
		if err := w.RecordEvent(ev); err != nil {
			t.Fatalf("RecordEvent error: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := w.RecordEvent(events[0]); err == nil {
		t.Fatalf("expected error after close")
	}

	f, err := os.Open(w.Path())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	r, err := NewRawLogReader(f)
	if err != nil {
		t.Fatalf("NewRawLogReader error: %v", err)
	}
	for i, want := range events {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if time.Since(rec.Time) > time.Minute {
			t.Fatalf("record %d: implausible timestamp %v", i, rec.Time)
		}
		got, err := DecodeEvent(rec.Payload)
		if err != nil {
			t.Fatalf("record %d decode: %v", i, err)
		}
		if got != want {
			t.Fatalf("record %d: got %+v want %+v", i, got, want)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestRawLogReaderRejectsMagic(t *testing.T) {
	if _, err := NewRawLogReader(strings.NewReader("STXMRAW1")); err == nil {
		t.Fatalf("expected magic error")
	}
}

func TestRawLogReaderTruncated(t *testing.T) {
	data := RawLogMagic + "\x00\x00\x00\x00\x00\x00\x00\x00\x10\x00\x00\x00abc"
	r, err := NewRawLogReader(strings.NewReader(data))
	if err != nil {
		t.Fatalf("NewRawLogReader error: %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected truncation error, got %v", err)
	}
}

func TestWriteSeriesAppends(t *testing.T) {
	dir := t.TempDir()
	first := []types.DetectionEvent{{Seq: 1, Timestamp: 1.5, Found: true, X: 3, Y: 4, Confidence: 42, Zone: "forward"}}
	second := []types.DetectionEvent{{Seq: 2, Timestamp: 2, X: -1, Y: -1, Confidence: -1, Zone: "none", Stale: true}}
	if err := WriteSeries(dir, "run", first); err != nil {
		t.Fatalf("WriteSeries error: %v", err)
	}
	if err := WriteSeries(dir, "run", second); err != nil {
		t.Fatalf("WriteSeries error: %v", err)
	}

	data, err := os.ReadFile(SeriesPath(dir, "run"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{
		seriesHeader,
		"1, 1.500000, true, 3, 4, 42.000, forward, false",
		"2, 2.000000, false, -1, -1, -1.000, none, true",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, lines[i], want[i])
		}
	}
}
