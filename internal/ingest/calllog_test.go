package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCallLog(t *testing.T, lines string) *FileCallLog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calls.jsonl")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write call log: %v", err)
	}
	return NewFileCallLog(path)
}

func TestFileCallLogScan(t *testing.T) {
	log := writeCallLog(t, `
{"phone":"+15551234567","direction":"incoming","timestamp":"2026-02-10T09:00:00Z","duration_seconds":0,"line_id":"ttyACM0"}
{"phone":"+15559876543","direction":"outgoing","timestamp":"2026-02-10T09:05:00Z","duration_seconds":30}
not json at all
{"phone":"+15551234567","direction":"incoming","timestamp":"2026-02-10T09:10:00Z","duration_seconds":0}
`)

	observations, err := log.Scan(context.Background(), time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("observations = %d, want 2 (since filter and bad line skip)", len(observations))
	}
	if observations[0].Direction != DirectionOutgoing || observations[0].Duration != 30*time.Second {
		t.Fatalf("first = %+v", observations[0])
	}
	if observations[1].Phone != "+15551234567" || observations[1].Direction != DirectionIncoming {
		t.Fatalf("second = %+v", observations[1])
	}
}

func TestFileCallLogMissingFileScansEmpty(t *testing.T) {
	log := NewFileCallLog(filepath.Join(t.TempDir(), "absent.jsonl"))
	observations, err := log.Scan(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(observations) != 0 {
		t.Fatalf("observations = %d, want 0", len(observations))
	}
}
