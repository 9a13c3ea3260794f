// Package sla derives alert conditions from call groups: callbacks that
// waited past the response threshold, and calls observed by more than one
// agent. Everything here is pure; scanning the store is the caller's job.
package sla

import (
	"sort"
	"time"

	"calldesk/internal/callstore"
)

// DefaultThreshold is the response-time target when none is configured.
const DefaultThreshold = 30 * time.Minute

// Alert describes one group that currently needs attention.
type Alert struct {
	GroupID     int64
	CallerPhone string
	ObservedAt  time.Time
	Waiting     time.Duration
	Agents      []string
	MultiAgent  bool
}

// Exceeded reports whether the group's oldest open record has waited longer
// than the threshold at the given instant. A wait exactly equal to the
// threshold is not an exceedance; completed groups never alert.
func Exceeded(group *callstore.Group, threshold time.Duration, now time.Time) bool {
	oldest := group.OldestOpen()
	if oldest == nil {
		return false
	}
	return now.Sub(oldest.ObservedAt) > threshold
}

// Waiting returns how long the group's oldest open record has been waiting,
// or zero when nothing is open.
func Waiting(group *callstore.Group, now time.Time) time.Duration {
	oldest := group.OldestOpen()
	if oldest == nil {
		return 0
	}
	if wait := now.Sub(oldest.ObservedAt); wait > 0 {
		return wait
	}
	return 0
}

// IsMultiAgent reports whether more than one agent observed calls in the
// group. Groups like this risk a double callback.
func IsMultiAgent(group *callstore.Group) bool {
	return len(group.RecipientUnion()) > 1
}

// Scan evaluates the given groups and returns an alert for each one that
// exceeds the threshold or involves multiple agents, longest wait first.
func Scan(groups []*callstore.Group, threshold time.Duration, now time.Time) []Alert {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var alerts []Alert
	for _, group := range groups {
		if group == nil || group.Primary == nil {
			continue
		}
		exceeded := Exceeded(group, threshold, now)
		multi := IsMultiAgent(group)
		if !exceeded && !(multi && group.OldestOpen() != nil) {
			continue
		}
		alerts = append(alerts, Alert{
			GroupID:     group.Primary.ID,
			CallerPhone: group.Primary.CallerPhone,
			ObservedAt:  group.Primary.ObservedAt,
			Waiting:     Waiting(group, now),
			Agents:      group.RecipientUnion(),
			MultiAgent:  multi,
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Waiting > alerts[j].Waiting
	})
	return alerts
}
