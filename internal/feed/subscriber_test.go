package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"calldesk/internal/callstore"
	"calldesk/internal/logging"
)

type recordingHandler struct {
	mu      sync.Mutex
	resyncs int
	applied []Event
}

func (h *recordingHandler) Resync(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resyncs++
	return nil
}

func (h *recordingHandler) Apply(ctx context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.applied = append(h.applied, event)
	return nil
}

func (h *recordingHandler) snapshot() (int, []Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resyncs, append([]Event(nil), h.applied...)
}

func TestSubscriberAppliesEventsAfterResync(t *testing.T) {
	var up websocket.Upgrader
	sendEvent := Event{EventID: "e1", Table: TableCallRecords, Op: callstore.OpUpdate, ID: 9, Seq: 1, TS: time.Now().UTC()}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := json.Marshal(sendEvent)
		conn.WriteMessage(websocket.TextMessage, data)
		// Hold the connection open so the subscriber does not reconnect.
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	handler := &recordingHandler{}
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	sub := Subscribe(context.Background(), url, "", handler, logging.NewNop())
	defer sub.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resyncs, applied := handler.snapshot()
		if resyncs >= 1 && len(applied) == 1 {
			if applied[0].ID != 9 || applied[0].Op != callstore.OpUpdate {
				t.Fatalf("unexpected event: %+v", applied[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("resyncs=%d applied=%d before deadline", resyncs, len(applied))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscriberResyncsOnReconnect(t *testing.T) {
	var up websocket.Upgrader
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Drop the connection immediately to force a reconnect.
		conn.Close()
	}))
	defer server.Close()

	handler := &recordingHandler{}
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	sub := Subscribe(context.Background(), url, "", handler, logging.NewNop())
	defer sub.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		resyncs, _ := handler.snapshot()
		if resyncs >= 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("resyncs = %d, want at least 2 after reconnects", resyncs)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubscriberCloseStopsLoop(t *testing.T) {
	handler := &recordingHandler{}
	// Nothing listens on this address; the subscriber just backs off.
	sub := Subscribe(context.Background(), "ws://127.0.0.1:1/feed", "", handler, logging.NewNop())

	done := make(chan struct{})
	go func() {
		sub.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}
