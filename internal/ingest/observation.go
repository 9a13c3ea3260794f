package ingest

import (
	"context"
	"time"
)

// Direction describes which way a call went.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Observation is one raw call-log entry as reported by the device.
type Observation struct {
	Phone     string
	Direction Direction
	Timestamp time.Time
	Duration  time.Duration
	LineID    string
}

// CallLog is the device call-log source the monitor polls. Implementations
// return observations recorded strictly after the given time.
type CallLog interface {
	Scan(ctx context.Context, since time.Time) ([]Observation, error)
}
