package api

import (
	"context"
	"testing"
	"time"

	"calldesk/internal/callstore"
	"calldesk/internal/testsupport"
)

func newServiceFixture(t *testing.T) (*CallService, *callstore.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return NewCallService(store, cfg.SLAThreshold()), store
}

func TestCallServiceListAndDescribe(t *testing.T) {
	svc, store := newServiceFixture(t)
	ctx := context.Background()
	rec := testsupport.SeedMissedCall(t, store, "+15551234567", time.Now().UTC())

	calls, err := svc.List(ctx, callstore.StatusMissed)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(calls) != 1 || calls[0].ID != rec.ID {
		t.Fatalf("calls = %+v, want the seeded record", calls)
	}
	if calls[0].Status != "missed" || calls[0].Kind != "missed" {
		t.Fatalf("dto = %+v", calls[0])
	}

	dto, err := svc.Describe(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if dto == nil || dto.CallerPhone != "+15551234567" {
		t.Fatalf("dto = %+v", dto)
	}

	missing, err := svc.Describe(ctx, 9999)
	if err != nil || missing != nil {
		t.Fatalf("Describe(missing) = (%+v, %v), want (nil, nil)", missing, err)
	}
}

func TestCallServiceGroupsAssembleMembers(t *testing.T) {
	svc, store := newServiceFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	primary := testsupport.SeedMissedCall(t, store, "+15551234567", base)
	_, err := store.Insert(ctx, &callstore.Record{
		CallerPhone:  "+15551234567",
		Kind:         callstore.KindMerged,
		Status:       callstore.StatusMissed,
		ObservedAt:   base.Add(5 * time.Minute),
		MergedIntoID: &primary.ID,
	})
	if err != nil {
		t.Fatalf("Insert member: %v", err)
	}

	groups, err := svc.Groups(ctx)
	if err != nil {
		t.Fatalf("Groups: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Members) != 1 {
		t.Fatalf("groups = %+v, want one group with one member", groups)
	}

	dto, err := svc.DescribeGroup(ctx, primary.ID)
	if err != nil {
		t.Fatalf("DescribeGroup: %v", err)
	}
	if dto.Primary.ID != primary.ID || len(dto.Members) != 1 {
		t.Fatalf("group dto = %+v", dto)
	}
}

func TestCallServiceAlerts(t *testing.T) {
	svc, store := newServiceFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	overdue := testsupport.SeedMissedCall(t, store, "+15551234567", now.Add(-2*time.Hour))
	testsupport.SeedMissedCall(t, store, "+15559876543", now.Add(-time.Minute))

	alerts, err := svc.Alerts(ctx, now)
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].GroupID != overdue.ID {
		t.Fatalf("alerts = %+v, want only the overdue group", alerts)
	}
	if alerts[0].WaitingSeconds < 7000 {
		t.Fatalf("waiting = %ds, want about two hours", alerts[0].WaitingSeconds)
	}
}

func TestCallServiceStats(t *testing.T) {
	svc, store := newServiceFixture(t)
	ctx := context.Background()
	testsupport.SeedMissedCall(t, store, "+15551234567", time.Now().UTC())

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["missed"] != 1 {
		t.Fatalf("stats = %v", stats)
	}
}

func TestNilCallServiceIsInert(t *testing.T) {
	var svc *CallService
	if calls, err := svc.List(context.Background()); calls != nil || err != nil {
		t.Fatalf("nil service List = (%v, %v)", calls, err)
	}
	if NewCallService(nil, 0) != nil {
		t.Fatal("NewCallService(nil) must return nil")
	}
}
