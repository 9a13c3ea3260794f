package ingest

import (
	"context"
	"testing"
	"time"

	"calldesk/internal/callstore"
	"calldesk/internal/logging"
	"calldesk/internal/merge"
	"calldesk/internal/testsupport"
)

func newTestIngestor(t *testing.T, lines *Lines) (*Ingestor, *callstore.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if lines == nil {
		lines = NewLines("")
	}
	ing := NewIngestor(store, lines, merge.NewPolicy(cfg.MergeWindow()), cfg.Ingest.AgentID, logging.NewNop())
	return ing, store
}

func TestIngestMissedCall(t *testing.T) {
	ing, store := newTestIngestor(t, nil)
	ctx := context.Background()
	testsupport.SeedClient(t, store, "+15551234567", "Acme Plumbing")

	rec, err := ing.Ingest(ctx, Observation{
		Phone:     "+1 (555) 123-4567",
		Direction: DirectionIncoming,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a stored record")
	}
	if rec.Kind != callstore.KindMissed || rec.Status != callstore.StatusMissed {
		t.Fatalf("kind/status = %s/%s, want missed/missed", rec.Kind, rec.Status)
	}
	if rec.CallerPhone != "+15551234567" {
		t.Fatalf("caller phone not normalized: %q", rec.CallerPhone)
	}
	if len(rec.Recipients) != 1 || rec.Recipients[0] != "agent-test" {
		t.Fatalf("recipients = %v, want [agent-test]", rec.Recipients)
	}
	if rec.ClientID == nil {
		t.Fatal("record not linked to registry client")
	}
}

func TestIngestAnsweredCallCompletes(t *testing.T) {
	ing, store := newTestIngestor(t, nil)
	ctx := context.Background()
	testsupport.SeedClient(t, store, "+15551234567", "Acme Plumbing")

	rec, err := ing.Ingest(ctx, Observation{
		Phone:     "+15551234567",
		Direction: DirectionIncoming,
		Timestamp: time.Now().UTC(),
		Duration:  42 * time.Second,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rec.Kind != callstore.KindCompleted || rec.Status != callstore.StatusCompleted {
		t.Fatalf("kind/status = %s/%s, want completed/completed", rec.Kind, rec.Status)
	}
}

func TestIngestDropsUnmonitoredCaller(t *testing.T) {
	ing, _ := newTestIngestor(t, nil)

	rec, err := ing.Ingest(context.Background(), Observation{
		Phone:     "+15550000000",
		Direction: DirectionIncoming,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rec != nil {
		t.Fatalf("unmonitored caller must be dropped, got record %d", rec.ID)
	}
}

func TestIngestDropsMalformedPhone(t *testing.T) {
	ing, _ := newTestIngestor(t, nil)

	rec, err := ing.Ingest(context.Background(), Observation{
		Phone:     "not-a-number",
		Direction: DirectionIncoming,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("malformed phone must not error: %v", err)
	}
	if rec != nil {
		t.Fatal("malformed phone must be dropped")
	}
}

func TestIngestDuplicateObservationIsIdempotent(t *testing.T) {
	ing, store := newTestIngestor(t, nil)
	ctx := context.Background()
	testsupport.SeedClient(t, store, "+15551234567", "Acme Plumbing")

	obs := Observation{
		Phone:     "+15551234567",
		Direction: DirectionIncoming,
		Timestamp: time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
	}
	first, err := ing.Ingest(ctx, obs)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := ing.Ingest(ctx, obs)
	if err != nil {
		t.Fatalf("replayed ingest: %v", err)
	}
	if second != nil {
		t.Fatalf("replay must be a no-op, got record %d", second.ID)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 1 {
		t.Fatalf("health.Total = %d after replay, want 1 (first record %d)", health.Total, first.ID)
	}
}

func TestIngestMergesRepeatAttempt(t *testing.T) {
	ing, store := newTestIngestor(t, nil)
	ctx := context.Background()
	testsupport.SeedClient(t, store, "+15551234567", "Acme Plumbing")

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	first, err := ing.Ingest(ctx, Observation{
		Phone:     "+15551234567",
		Direction: DirectionIncoming,
		Timestamp: base,
	})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	repeat, err := ing.Ingest(ctx, Observation{
		Phone:     "+15551234567",
		Direction: DirectionIncoming,
		Timestamp: base.Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("repeat ingest: %v", err)
	}
	if repeat.Kind != callstore.KindMerged {
		t.Fatalf("repeat kind = %s, want merged", repeat.Kind)
	}
	if repeat.MergedIntoID == nil || *repeat.MergedIntoID != first.ID {
		t.Fatalf("repeat not linked to primary %d: %v", first.ID, repeat.MergedIntoID)
	}

	group, err := store.Group(ctx, first.ID)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(group.Members) != 1 || group.Members[0].ID != repeat.ID {
		t.Fatalf("group members = %v, want the merged repeat", group.Members)
	}
}

func TestIngestPropagatesLineSelection(t *testing.T) {
	lines := NewLines("", "ttyACM0", "ttyACM1")
	ing, store := newTestIngestor(t, lines)
	testsupport.SeedClient(t, store, "+15551234567", "Acme Plumbing")

	_, err := ing.Ingest(context.Background(), Observation{
		Phone:     "+15551234567",
		Direction: DirectionIncoming,
		Timestamp: time.Now().UTC(),
		LineID:    "ttyACM0",
	})
	if err != ErrLineSelectionRequired {
		t.Fatalf("err = %v, want ErrLineSelectionRequired", err)
	}
}

func TestIngestFiltersPersonalLine(t *testing.T) {
	lines := NewLines("ttyACM1", "ttyACM0", "ttyACM1")
	ing, store := newTestIngestor(t, lines)
	testsupport.SeedClient(t, store, "+15551234567", "Acme Plumbing")

	rec, err := ing.Ingest(context.Background(), Observation{
		Phone:     "+15551234567",
		Direction: DirectionIncoming,
		Timestamp: time.Now().UTC(),
		LineID:    "ttyACM0",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rec != nil {
		t.Fatal("personal-line call must be dropped")
	}
}
