package sla

import (
	"testing"
	"time"

	"calldesk/internal/callstore"
)

func openGroup(id int64, observedAt time.Time, recipients ...string) *callstore.Group {
	return &callstore.Group{
		Primary: &callstore.Record{
			ID:          id,
			CallerPhone: "+15551234567",
			Kind:        callstore.KindMissed,
			Status:      callstore.StatusMissed,
			ObservedAt:  observedAt,
			Recipients:  recipients,
		},
	}
}

func TestExceededBoundary(t *testing.T) {
	threshold := 30 * time.Minute
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	group := openGroup(1, base, "alice")

	if Exceeded(group, threshold, base.Add(threshold)) {
		t.Fatal("a wait exactly at the threshold must not alert")
	}
	if !Exceeded(group, threshold, base.Add(threshold+time.Second)) {
		t.Fatal("one second past the threshold must alert")
	}
}

func TestExceededUsesOldestOpenRecord(t *testing.T) {
	threshold := 30 * time.Minute
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	group := openGroup(1, base.Add(40*time.Minute), "alice")
	group.Members = []*callstore.Record{{
		ID:          2,
		CallerPhone: "+15551234567",
		Kind:        callstore.KindMerged,
		Status:      callstore.StatusMissed,
		ObservedAt:  base,
		Recipients:  []string{"alice"},
	}}

	// The primary alone is inside the threshold, but the merged member has
	// been waiting since base.
	if !Exceeded(group, threshold, base.Add(45*time.Minute)) {
		t.Fatal("oldest open record drives the wait, not the primary")
	}
}

func TestCompletedGroupNeverAlerts(t *testing.T) {
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	group := openGroup(1, base, "alice")
	group.Primary.Status = callstore.StatusCompleted

	if Exceeded(group, time.Minute, base.Add(24*time.Hour)) {
		t.Fatal("completed groups must not alert")
	}
	if Waiting(group, base.Add(24*time.Hour)) != 0 {
		t.Fatal("completed groups have no wait")
	}
}

func TestReservedGroupStillCounts(t *testing.T) {
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	group := openGroup(1, base, "alice")
	group.Primary.Status = callstore.StatusReserved
	group.Primary.ClaimOwner = "alice"

	if !Exceeded(group, 30*time.Minute, base.Add(time.Hour)) {
		t.Fatal("a reserved but uncompleted call still waits on its SLA")
	}
}

func TestIsMultiAgent(t *testing.T) {
	group := openGroup(1, time.Now().UTC(), "alice")
	if IsMultiAgent(group) {
		t.Fatal("single recipient is not multi-agent")
	}
	group.Members = []*callstore.Record{{
		ID:         2,
		Status:     callstore.StatusMissed,
		Recipients: []string{"bob", "alice"},
	}}
	if !IsMultiAgent(group) {
		t.Fatal("two distinct recipients across the group is multi-agent")
	}
}

func TestScanOrdersByWait(t *testing.T) {
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	now := base.Add(2 * time.Hour)

	newer := openGroup(1, base.Add(time.Hour), "alice")
	older := openGroup(2, base, "alice")
	fresh := openGroup(3, now.Add(-time.Minute), "alice")
	multi := openGroup(4, now.Add(-2*time.Minute), "alice", "bob")

	alerts := Scan([]*callstore.Group{newer, older, fresh, multi}, 30*time.Minute, now)
	if len(alerts) != 3 {
		t.Fatalf("alerts = %d, want 3", len(alerts))
	}
	if alerts[0].GroupID != 2 || alerts[1].GroupID != 1 {
		t.Fatalf("alerts not ordered by wait: %+v", alerts)
	}
	if alerts[2].GroupID != 4 || !alerts[2].MultiAgent {
		t.Fatalf("multi-agent group missing from scan: %+v", alerts)
	}
}

func TestScanSkipsCompletedMultiAgent(t *testing.T) {
	group := openGroup(1, time.Now().UTC().Add(-time.Minute), "alice", "bob")
	group.Primary.Status = callstore.StatusCompleted

	alerts := Scan([]*callstore.Group{group}, 30*time.Minute, time.Now().UTC())
	if len(alerts) != 0 {
		t.Fatalf("completed multi-agent group must not alert, got %+v", alerts)
	}
}
