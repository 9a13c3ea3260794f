package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// FileCallLog reads observations from a JSON-lines call log written by the
// device's telephony stack. Each line carries one entry:
//
//	{"phone":"+15551234567","direction":"incoming","timestamp":"2026-02-10T09:00:00Z","duration_seconds":0,"line_id":"ttyACM0"}
//
// Scan is stateless over the file; the monitor tracks the since cursor, so a
// log rewritten by rotation just replays entries that dedupe on insert.
type FileCallLog struct {
	path string
}

// NewFileCallLog builds a call log over the given path. A missing file scans
// as empty, which covers devices that have not received a call yet.
func NewFileCallLog(path string) *FileCallLog {
	return &FileCallLog{path: path}
}

type callLogEntry struct {
	Phone           string `json:"phone"`
	Direction       string `json:"direction"`
	Timestamp       string `json:"timestamp"`
	DurationSeconds int64  `json:"duration_seconds"`
	LineID          string `json:"line_id"`
}

// Scan returns observations recorded strictly after since, oldest first.
// Lines that do not parse are skipped; a torn final line from an in-progress
// write is expected, not an error.
func (f *FileCallLog) Scan(ctx context.Context, since time.Time) ([]Observation, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open call log: %w", err)
	}
	defer file.Close()

	var observations []Observation
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry callLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil {
			continue
		}
		if !ts.After(since) {
			continue
		}
		direction := DirectionIncoming
		if entry.Direction == string(DirectionOutgoing) {
			direction = DirectionOutgoing
		}
		observations = append(observations, Observation{
			Phone:     entry.Phone,
			Direction: direction,
			Timestamp: ts.UTC(),
			Duration:  time.Duration(entry.DurationSeconds) * time.Second,
			LineID:    entry.LineID,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read call log: %w", err)
	}
	return observations, nil
}
