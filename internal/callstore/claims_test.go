package callstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"calldesk/internal/callstore"
	"calldesk/internal/testsupport"
)

func TestClaimSetsOwnerOnWholeGroup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	primary := testsupport.SeedMissedCall(t, store, "+48600000000", base)
	if _, err := store.Insert(ctx, &callstore.Record{
		CallerPhone:  "+48600000000",
		Kind:         callstore.KindMerged,
		Status:       callstore.StatusMissed,
		ObservedAt:   base.Add(10 * time.Minute),
		MergedIntoID: &primary.ID,
	}); err != nil {
		t.Fatalf("Insert merged: %v", err)
	}

	group, err := store.Claim(ctx, primary.ID, "agent-a")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	for _, rec := range group.Records() {
		if rec.Status != callstore.StatusReserved {
			t.Fatalf("record %d status = %s, want reserved", rec.ID, rec.Status)
		}
		if rec.ClaimOwner != "agent-a" {
			t.Fatalf("record %d owner = %q, want agent-a", rec.ID, rec.ClaimOwner)
		}
		if rec.ClaimedAt == nil {
			t.Fatalf("record %d missing claim timestamp", rec.ID)
		}
	}
}

func TestClaimConflictNamesOwner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	primary := testsupport.SeedMissedCall(t, store, "+48600000000", time.Now().UTC())
	if _, err := store.Claim(ctx, primary.ID, "agent-a"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	_, err := store.Claim(ctx, primary.ID, "agent-b")
	if !errors.Is(err, callstore.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var conflict *callstore.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %T", err)
	}
	if conflict.Owner != "agent-a" {
		t.Fatalf("conflict owner = %q, want agent-a", conflict.Owner)
	}
}

func TestClaimReservedGroupWithNewMemberConflicts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	primary := testsupport.SeedMissedCall(t, store, "+48600000000", base)
	if _, err := store.Claim(ctx, primary.ID, "agent-b"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	// A repeat attempt merges into the group after it was reserved; the new
	// member arrives open.
	member, err := store.Insert(ctx, &callstore.Record{
		CallerPhone:  "+48600000000",
		Kind:         callstore.KindMerged,
		Status:       callstore.StatusMissed,
		ObservedAt:   base.Add(10 * time.Minute),
		MergedIntoID: &primary.ID,
	})
	if err != nil {
		t.Fatalf("Insert merged: %v", err)
	}

	_, err = store.Claim(ctx, primary.ID, "agent-a")
	var conflict *callstore.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("claim on another agent's group: err = %v, want ConflictError", err)
	}
	if conflict.Owner != "agent-b" {
		t.Fatalf("conflict owner = %q, want agent-b", conflict.Owner)
	}

	fetched, err := store.GetByID(ctx, member.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.ClaimOwner != "" || fetched.Status != callstore.StatusMissed {
		t.Fatalf("rejected claim touched the new member: %s/%q", fetched.Status, fetched.ClaimOwner)
	}

	// The holding agent extends the claim over the new member.
	group, err := store.Claim(ctx, primary.ID, "agent-b")
	if err != nil {
		t.Fatalf("Claim by owner: %v", err)
	}
	for _, rec := range group.Records() {
		if rec.ClaimOwner != "agent-b" || rec.Status != callstore.StatusReserved {
			t.Fatalf("record %d = %s/%q, want reserved by agent-b", rec.ID, rec.Status, rec.ClaimOwner)
		}
	}
}

func TestClaimIsIdempotentForOwner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	primary := testsupport.SeedMissedCall(t, store, "+48600000000", time.Now().UTC())
	first, err := store.Claim(ctx, primary.ID, "agent-a")
	if err != nil {
		t.Fatalf("first Claim: %v", err)
	}
	second, err := store.Claim(ctx, primary.ID, "agent-a")
	if err != nil {
		t.Fatalf("retried Claim by owner should succeed: %v", err)
	}
	if second.Primary.ClaimOwner != "agent-a" {
		t.Fatalf("owner = %q after retry", second.Primary.ClaimOwner)
	}
	if !second.Primary.ClaimedAt.Equal(*first.Primary.ClaimedAt) {
		t.Fatal("retried claim must not refresh the claim timestamp")
	}
}

func TestConcurrentClaimsResolveToOneWinner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	primary := testsupport.SeedMissedCall(t, store, "+48600000000", time.Now().UTC())

	agents := []string{"agent-a", "agent-b"}
	results := make([]error, len(agents))
	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent string) {
			defer wg.Done()
			_, results[i] = store.Claim(ctx, primary.ID, agent)
		}(i, agent)
	}
	wg.Wait()

	var winners, losers int
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, callstore.ErrConflict):
			losers++
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if winners != 1 || losers != 1 {
		t.Fatalf("winners = %d, losers = %d, want exactly one of each", winners, losers)
	}

	group, err := store.Group(ctx, primary.ID)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if group.Primary.ClaimOwner == "" {
		t.Fatal("expected a claim owner after the race")
	}
}

func TestReleaseByNonOwnerSucceeds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	primary := testsupport.SeedMissedCall(t, store, "+48600000000", time.Now().UTC())
	if _, err := store.Claim(ctx, primary.ID, "agent-a"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	group, err := store.Release(ctx, primary.ID)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if group.Primary.Status != callstore.StatusMissed {
		t.Fatalf("status after release = %s, want missed", group.Primary.Status)
	}
	if group.Primary.ClaimOwner != "" || group.Primary.ClaimedAt != nil {
		t.Fatalf("claim fields not cleared: %#v", group.Primary)
	}
}

func TestReleaseLeavesCompletedUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	primary := testsupport.SeedMissedCall(t, store, "+48600000000", time.Now().UTC())
	if _, err := store.Claim(ctx, primary.ID, "agent-a"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := store.Complete(ctx, primary.ID, "agent-a"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	group, err := store.Release(ctx, primary.ID)
	if err != nil {
		t.Fatalf("Release on completed group: %v", err)
	}
	if group.Primary.Status != callstore.StatusCompleted {
		t.Fatalf("completed record reopened: %#v", group.Primary)
	}
}

func TestCompleteRequiresOwner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	primary := testsupport.SeedMissedCall(t, store, "+48600000000", time.Now().UTC())
	if _, err := store.Claim(ctx, primary.ID, "agent-a"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	if _, err := store.Complete(ctx, primary.ID, "agent-b"); !errors.Is(err, callstore.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	group, err := store.Complete(ctx, primary.ID, "agent-a")
	if err != nil {
		t.Fatalf("Complete by owner: %v", err)
	}
	if group.Primary.Status != callstore.StatusCompleted || group.Primary.Kind != callstore.KindCompleted {
		t.Fatalf("unexpected completed record: %#v", group.Primary)
	}

	// Terminal: a second complete is a no-op, by anyone.
	again, err := store.Complete(ctx, primary.ID, "agent-b")
	if err != nil {
		t.Fatalf("Complete on terminal group: %v", err)
	}
	if again.Primary.Status != callstore.StatusCompleted {
		t.Fatalf("terminal status changed: %#v", again.Primary)
	}
}

func TestAddRecipientIsIdempotentAndMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec := testsupport.SeedMissedCall(t, store, "+48600000000", time.Now().UTC())

	for _, agent := range []string{"agent-a", "agent-b", "agent-a"} {
		if err := store.AddRecipient(ctx, rec.ID, agent); err != nil {
			t.Fatalf("AddRecipient(%s): %v", agent, err)
		}
	}

	fetched, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(fetched.Recipients) != 2 {
		t.Fatalf("recipients = %v, want two distinct agents", fetched.Recipients)
	}
	if !fetched.HasRecipient("agent-a") || !fetched.HasRecipient("agent-b") {
		t.Fatalf("recipients missing entries: %v", fetched.Recipients)
	}
}

func TestClaimUnknownGroup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Claim(context.Background(), 404, "agent-a"); !errors.Is(err, callstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
