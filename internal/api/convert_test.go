package api

import (
	"testing"
	"time"

	"calldesk/internal/callstore"
	"calldesk/internal/sla"
)

func TestFromRecord(t *testing.T) {
	clientID := int64(3)
	claimedAt := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	mergedInto := int64(7)

	rec := &callstore.Record{
		ID:           12,
		ClientID:     &clientID,
		CallerPhone:  "+15551234567",
		Kind:         callstore.KindMerged,
		Status:       callstore.StatusReserved,
		ObservedAt:   time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		ClaimOwner:   "alice",
		ClaimedAt:    &claimedAt,
		Recipients:   []string{"alice", "bob"},
		MergedIntoID: &mergedInto,
	}

	dto := FromRecord(rec)
	if dto.ID != 12 || dto.ClientID != 3 || dto.MergedIntoID != 7 {
		t.Fatalf("ids = %+v", dto)
	}
	if dto.Kind != "merged" || dto.Status != "reserved" || dto.ClaimOwner != "alice" {
		t.Fatalf("dto = %+v", dto)
	}
	if dto.ObservedAt != "2026-02-10T09:00:00.000Z" {
		t.Fatalf("observedAt = %q", dto.ObservedAt)
	}
	if dto.ClaimedAt != "2026-02-10T09:30:00.000Z" {
		t.Fatalf("claimedAt = %q", dto.ClaimedAt)
	}
	if len(dto.Recipients) != 2 {
		t.Fatalf("recipients = %v", dto.Recipients)
	}
}

func TestFromRecordNil(t *testing.T) {
	if dto := FromRecord(nil); dto.ID != 0 || dto.CallerPhone != "" {
		t.Fatalf("nil record dto = %+v", dto)
	}
}

func TestFromGroupDerivesAgents(t *testing.T) {
	group := &callstore.Group{
		Primary: &callstore.Record{
			ID:         1,
			Status:     callstore.StatusMissed,
			Recipients: []string{"alice"},
		},
		Members: []*callstore.Record{{
			ID:         2,
			Status:     callstore.StatusMissed,
			Recipients: []string{"bob"},
		}},
	}
	dto := FromGroup(group)
	if !dto.MultiAgent || len(dto.Agents) != 2 {
		t.Fatalf("group dto = %+v", dto)
	}
}

func TestFromAlert(t *testing.T) {
	alert := sla.Alert{
		GroupID:     4,
		CallerPhone: "+15551234567",
		ObservedAt:  time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		Waiting:     90 * time.Minute,
		Agents:      []string{"alice"},
	}
	dto := FromAlert(alert)
	if dto.WaitingSeconds != 5400 {
		t.Fatalf("waitingSeconds = %d", dto.WaitingSeconds)
	}
	if dto.ObservedAt == "" || dto.GroupID != 4 {
		t.Fatalf("dto = %+v", dto)
	}
}

func TestFormatTime(t *testing.T) {
	if FormatTime(time.Time{}) != "" {
		t.Fatal("zero time must format empty")
	}
	got := FormatTime(time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))
	if got != "2026-02-10T09:00:00.000Z" {
		t.Fatalf("FormatTime = %q", got)
	}
}
