package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"calldesk/internal/callstore"
	"calldesk/internal/logging"
	"calldesk/internal/testsupport"
)

type recordingNotifier struct {
	mu     sync.Mutex
	groups []int64
	agents [][]string
}

func (n *recordingNotifier) NotifyMultiAgentCall(ctx context.Context, groupID int64, agents []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.groups = append(n.groups, groupID)
	n.agents = append(n.agents, agents)
	return nil
}

func newTestService(t *testing.T) (*Service, *callstore.Store, *recordingNotifier) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	svc := NewService(store, NewView(), notifier, logging.NewNop())
	return svc, store, notifier
}

func TestServiceClaimAndView(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	rec := testsupport.SeedMissedCall(t, store, "+15551234567", time.Now().UTC())

	group, err := svc.Claim(ctx, rec.ID, "alice")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if group.Primary.Status != callstore.StatusReserved || group.Primary.ClaimOwner != "alice" {
		t.Fatalf("claimed primary = %s/%q", group.Primary.Status, group.Primary.ClaimOwner)
	}

	viewed, ok := svc.View().Group(rec.ID)
	if !ok {
		t.Fatal("view must hold the confirmed group")
	}
	if viewed.Primary.ClaimOwner != "alice" {
		t.Fatalf("view owner = %q, want alice", viewed.Primary.ClaimOwner)
	}
}

func TestServiceClaimConflictNamesOwner(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	rec := testsupport.SeedMissedCall(t, store, "+15551234567", time.Now().UTC())

	if _, err := svc.Claim(ctx, rec.ID, "alice"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err := svc.Claim(ctx, rec.ID, "bob")
	var conflict *callstore.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if conflict.Owner != "alice" {
		t.Fatalf("conflict owner = %q, want alice", conflict.Owner)
	}
	if svc.View().Stale() {
		t.Fatal("conflict triggers a re-fetch, so the view must be fresh again")
	}
}

func TestServiceEmergencyRelease(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	rec := testsupport.SeedMissedCall(t, store, "+15551234567", time.Now().UTC())

	if _, err := svc.Claim(ctx, rec.ID, "alice"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	group, err := svc.Release(ctx, rec.ID, "bob")
	if err != nil {
		t.Fatalf("release by non-owner must succeed: %v", err)
	}
	if group.Primary.Status != callstore.StatusMissed || group.Primary.ClaimOwner != "" {
		t.Fatalf("released primary = %s/%q", group.Primary.Status, group.Primary.ClaimOwner)
	}
}

func TestServiceCompleteByNonOwnerRejected(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	rec := testsupport.SeedMissedCall(t, store, "+15551234567", time.Now().UTC())

	if _, err := svc.Claim(ctx, rec.ID, "alice"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := svc.Complete(ctx, rec.ID, "bob"); !errors.Is(err, callstore.ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}

	group, err := svc.Complete(ctx, rec.ID, "alice")
	if err != nil {
		t.Fatalf("complete by owner: %v", err)
	}
	if group.Primary.Status != callstore.StatusCompleted {
		t.Fatalf("status = %s, want completed", group.Primary.Status)
	}
}

func TestServiceAddRecipientSignalsMultiAgent(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	rec, err := store.Insert(ctx, &callstore.Record{
		CallerPhone: "+15551234567",
		Kind:        callstore.KindMissed,
		Status:      callstore.StatusMissed,
		ObservedAt:  time.Now().UTC(),
		Recipients:  []string{"alice"},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	group, err := svc.AddRecipient(ctx, rec.ID, "bob")
	if err != nil {
		t.Fatalf("AddRecipient: %v", err)
	}
	if union := group.RecipientUnion(); len(union) != 2 {
		t.Fatalf("recipient union = %v, want two agents", union)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.groups) != 1 || notifier.groups[0] != rec.ID {
		t.Fatalf("notifier calls = %v, want one for group %d", notifier.groups, rec.ID)
	}
}

func TestServiceAddRecipientSingleAgentStaysQuiet(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()
	rec := testsupport.SeedMissedCall(t, store, "+15551234567", time.Now().UTC())

	if _, err := svc.AddRecipient(ctx, rec.ID, "alice"); err != nil {
		t.Fatalf("AddRecipient: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.groups) != 0 {
		t.Fatalf("single-agent group must not notify, got %v", notifier.groups)
	}
}

// vanishingStore acknowledges the append but cannot find the record on the
// re-read, as when another device deletes the row in between.
type vanishingStore struct {
	Store
}

func (vanishingStore) AddRecipient(ctx context.Context, callID int64, agentID string) error {
	return nil
}

func (vanishingStore) GetByID(ctx context.Context, id int64) (*callstore.Record, error) {
	return nil, nil
}

func TestServiceAddRecipientRecordVanishes(t *testing.T) {
	svc := NewService(vanishingStore{}, NewView(), nil, logging.NewNop())

	_, err := svc.AddRecipient(context.Background(), 7, "alice")
	if !errors.Is(err, callstore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestServiceReleaseUnknownGroup(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Release(context.Background(), 9999, "alice"); !errors.Is(err, callstore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
