package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"calldesk/internal/callstore"
)

// TableCallRecords and TableClients are the store tables surfaced on the
// feed.
const (
	TableCallRecords = "call_records"
	TableClients     = "clients"
)

// Event is one change-feed message. The payload is deliberately thin: the
// row identity plus a hub-local sequence number, never row contents.
// Subscribers re-fetch whatever the event touches.
type Event struct {
	EventID string             `json:"event_id"`
	Table   string             `json:"table"`
	Op      callstore.ChangeOp `json:"op"`
	ID      int64              `json:"id"`
	Seq     uint64             `json:"seq"`
	TS      time.Time          `json:"ts"`
}

// Validate rejects malformed events at the wire boundary. Unknown tables and
// operations are hard errors so protocol drift surfaces immediately instead
// of as silently ignored updates.
func (e Event) Validate() error {
	switch e.Table {
	case TableCallRecords, TableClients:
	default:
		return fmt.Errorf("unknown feed table %q", e.Table)
	}
	switch e.Op {
	case callstore.OpInsert, callstore.OpUpdate, callstore.OpDelete:
	default:
		return fmt.Errorf("unknown feed op %q", e.Op)
	}
	if e.ID <= 0 {
		return fmt.Errorf("feed event without a row id")
	}
	return nil
}

// DecodeEvent parses and validates a wire message.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("decode feed event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}
