package testsupport

import (
	"context"
	"testing"
	"time"

	"calldesk/internal/callstore"
	"calldesk/internal/config"
)

// MustOpenStore opens a callstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *callstore.Store {
	t.Helper()

	store, err := callstore.Open(cfg)
	if err != nil {
		t.Fatalf("callstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedClient registers a client for tests using the provided store.
func SeedClient(t testing.TB, store *callstore.Store, phone, name string) *callstore.Client {
	t.Helper()

	client, err := store.AddClient(context.Background(), phone, name, "", "")
	if err != nil {
		t.Fatalf("store.AddClient: %v", err)
	}
	return client
}

// SeedMissedCall inserts a missed call record for tests.
func SeedMissedCall(t testing.TB, store *callstore.Store, phone string, observedAt time.Time) *callstore.Record {
	t.Helper()

	rec, err := store.Insert(context.Background(), &callstore.Record{
		CallerPhone: phone,
		Kind:        callstore.KindMissed,
		Status:      callstore.StatusMissed,
		ObservedAt:  observedAt,
	})
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return rec
}
