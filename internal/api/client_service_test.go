package api

import (
	"context"
	"errors"
	"testing"

	"calldesk/internal/callstore"
	"calldesk/internal/ingest"
	"calldesk/internal/testsupport"
)

func TestClientServiceAddNormalizesPhone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := NewClientService(store)
	ctx := context.Background()

	dto, err := svc.Add(ctx, "+1 (555) 123-4567", "Acme Plumbing", "12 Main St", "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if dto.Phone != "+15551234567" {
		t.Fatalf("phone = %q, want canonical form", dto.Phone)
	}

	if _, err := svc.Add(ctx, "+15551234567", "Duplicate", "", ""); !errors.Is(err, callstore.ErrDuplicateClient) {
		t.Fatalf("duplicate err = %v", err)
	}
	if _, err := svc.Add(ctx, "bogus", "Bad Phone", "", ""); !errors.Is(err, ingest.ErrInvalidPhone) {
		t.Fatalf("invalid phone err = %v", err)
	}
}

func TestClientServiceListAndRemove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := NewClientService(store)
	ctx := context.Background()

	added, err := svc.Add(ctx, "+15551234567", "Acme Plumbing", "", "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	clients, err := svc.List(ctx)
	if err != nil || len(clients) != 1 {
		t.Fatalf("List = (%v, %v)", clients, err)
	}

	removed, err := svc.Remove(ctx, added.ID)
	if err != nil || !removed {
		t.Fatalf("Remove = (%v, %v)", removed, err)
	}
	removed, err = svc.Remove(ctx, added.ID)
	if err != nil || removed {
		t.Fatalf("second Remove = (%v, %v), want no-op", removed, err)
	}
}
