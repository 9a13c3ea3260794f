package merge

import (
	"context"
	"fmt"
	"time"

	"calldesk/internal/callstore"
)

// DefaultWindow bounds how far back a new attempt may merge into an earlier
// open call from the same caller.
const DefaultWindow = 24 * time.Hour

// Finder is the subset of the call store the policy reads.
type Finder interface {
	OpenPrimaryForCaller(ctx context.Context, phone string, window time.Duration, ref time.Time) (*callstore.Record, error)
	UnlinkedMergedForCaller(ctx context.Context, phone string, window time.Duration, ref time.Time) ([]*callstore.Record, error)
}

// Policy holds the merge window configuration.
type Policy struct {
	Window time.Duration
}

// NewPolicy returns a policy with the given window, defaulting when
// non-positive.
func NewPolicy(window time.Duration) Policy {
	if window <= 0 {
		window = DefaultWindow
	}
	return Policy{Window: window}
}

// Classify decides how a new observation joins existing state and mutates
// the record accordingly before it is inserted. When an open primary exists
// for the caller within the window, the record is marked merged and linked to
// that primary; the primary's own status is never changed. Otherwise the
// record stays a primary of its own.
//
// The returned id is the target primary's, or zero when the record roots a
// new group.
func (p Policy) Classify(ctx context.Context, finder Finder, rec *callstore.Record) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("record is nil")
	}
	primary, err := finder.OpenPrimaryForCaller(ctx, rec.CallerPhone, p.Window, rec.ObservedAt)
	if err != nil {
		return 0, fmt.Errorf("classify observation: %w", err)
	}
	if primary == nil {
		return 0, nil
	}
	// Merge links must target a primary directly; the query only returns
	// primaries, so depth stays at one.
	rec.Kind = callstore.KindMerged
	rec.MergedIntoID = &primary.ID
	return primary.ID, nil
}

// DisplayMembers implements the legacy aggregation path: for a completed
// primary with a linked follow-up note, unlinked merged records from the
// same caller within the window are shown as part of that group. This is a
// read-side association only; no record is modified and the completed
// primary is never reopened.
func (p Policy) DisplayMembers(ctx context.Context, finder Finder, primary *callstore.Record) ([]*callstore.Record, error) {
	if primary == nil || primary.Status != callstore.StatusCompleted || primary.NoteID == nil {
		return nil, nil
	}
	members, err := finder.UnlinkedMergedForCaller(ctx, primary.CallerPhone, p.Window, primary.ObservedAt.Add(p.Window))
	if err != nil {
		return nil, fmt.Errorf("display members: %w", err)
	}
	filtered := members[:0]
	for _, member := range members {
		if member.ID == primary.ID {
			continue
		}
		filtered = append(filtered, member)
	}
	return filtered, nil
}
