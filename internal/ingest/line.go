package ingest

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrLineSelectionRequired indicates the device exposes more than one
// telephony line and no business line has been chosen yet. Ingestion is
// suspended until an agent picks one.
var ErrLineSelectionRequired = errors.New("business line selection required")

// Lines tracks the telephony lines detected on this device and which of
// them, if any, is the designated business line. Line identifiers are
// opaque, manufacturer-dependent strings; matching is exact.
//
// The zero filter (no business line, at most one detected line) passes
// everything through: a missed business call is worse than processing a
// personal-line call.
type Lines struct {
	mu           sync.Mutex
	businessLine string
	detected     map[string]struct{}
}

// NewLines builds the line state from the persisted business line choice and
// any lines already known at startup.
func NewLines(businessLine string, detected ...string) *Lines {
	l := &Lines{
		businessLine: strings.TrimSpace(businessLine),
		detected:     make(map[string]struct{}),
	}
	for _, line := range detected {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			l.detected[trimmed] = struct{}{}
		}
	}
	return l
}

// AddDetected records a line observed on the device. Returns true when the
// line was not known before.
func (l *Lines) AddDetected(lineID string) bool {
	trimmed := strings.TrimSpace(lineID)
	if trimmed == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.detected[trimmed]; ok {
		return false
	}
	l.detected[trimmed] = struct{}{}
	return true
}

// SetBusinessLine records the agent's choice and lifts any suspension.
func (l *Lines) SetBusinessLine(lineID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.businessLine = strings.TrimSpace(lineID)
}

// BusinessLine returns the chosen line identifier, or "".
func (l *Lines) BusinessLine() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.businessLine
}

// Detected returns the known line identifiers, sorted.
func (l *Lines) Detected() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	lines := make([]string, 0, len(l.detected))
	for line := range l.detected {
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return lines
}

// SelectionRequired reports whether ingestion must be suspended: more than
// one line present and no business line chosen.
func (l *Lines) SelectionRequired() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.businessLine == "" && len(l.detected) > 1
}

// Allow decides whether an observation on the given line belongs to the
// business line. When identification is impossible (no line id on the
// observation, or no business line configured with at most one line
// present) the observation passes through unfiltered.
func (l *Lines) Allow(lineID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.businessLine == "" {
		if len(l.detected) > 1 {
			return false, ErrLineSelectionRequired
		}
		return true, nil
	}

	trimmed := strings.TrimSpace(lineID)
	if trimmed == "" {
		// Unidentifiable line: prefer a false negative over dropping a
		// business call.
		return true, nil
	}
	return trimmed == l.businessLine, nil
}
