package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"calldesk/internal/callstore"
	"calldesk/internal/logging"
)

func TestHubBroadcastsPublishedChanges(t *testing.T) {
	hub := NewHub(logging.NewNop(), 0)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hub.Stop()

	server := httptest.NewServer(hub)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the hub a beat to register the client before publishing.
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(callstore.Change{Table: TableCallRecords, Op: callstore.OpInsert, ID: 42})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Table != TableCallRecords || event.Op != callstore.OpInsert || event.ID != 42 {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Seq == 0 || event.EventID == "" {
		t.Fatalf("event missing sequencing: %+v", event)
	}
}

func TestHubSequenceIsMonotonic(t *testing.T) {
	hub := NewHub(logging.NewNop(), 0)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hub.Stop()

	server := httptest.NewServer(hub)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	for i := int64(1); i <= 3; i++ {
		hub.Publish(callstore.Change{Table: TableCallRecords, Op: callstore.OpUpdate, ID: i})
	}

	var last uint64
	for i := 0; i < 3; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		event, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if event.Seq <= last {
			t.Fatalf("sequence not monotonic: %d after %d", event.Seq, last)
		}
		last = event.Seq
	}
}

func TestHubIgnoresMalformedChange(t *testing.T) {
	hub := NewHub(logging.NewNop(), 0)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hub.Stop()

	// Must not panic or wedge the dispatch loop.
	hub.Publish(callstore.Change{Table: "bogus", Op: "upsert", ID: 0})
	hub.Publish(callstore.Change{Table: TableClients, Op: callstore.OpInsert, ID: 1})
}
