package feed

import (
	"context"
	"errors"
	"fmt"

	"calldesk/internal/callstore"
	"calldesk/internal/reservation"
)

// GroupSource provides confirmed group state for resyncs and per-event
// refetches. The daemon's API service and the store both satisfy it through
// thin adapters.
type GroupSource interface {
	Group(ctx context.Context, primaryID int64) (*callstore.Group, error)
	Groups(ctx context.Context) ([]*callstore.Group, error)
}

// ViewSync keeps a reservation view aligned with the feed: full resync on
// connect, per-group refetch on call events. It is the standard Handler
// implementation for interactive clients.
type ViewSync struct {
	source GroupSource
	view   *reservation.View
}

// NewViewSync binds a view to a group source.
func NewViewSync(source GroupSource, view *reservation.View) *ViewSync {
	return &ViewSync{source: source, view: view}
}

// Resync replaces the view's authoritative layer with fresh store state.
func (v *ViewSync) Resync(ctx context.Context) error {
	groups, err := v.source.Groups(ctx)
	if err != nil {
		return fmt.Errorf("feed resync: %w", err)
	}
	v.view.Replace(groups)
	return nil
}

// Apply refetches the group named by a call event. Events for merged members
// or rows that vanished cannot be resolved to a primary from the id alone,
// so those degrade to a full resync.
func (v *ViewSync) Apply(ctx context.Context, event Event) error {
	if event.Table != TableCallRecords {
		return nil
	}
	if event.Op == callstore.OpDelete {
		v.view.Forget(event.ID)
		return nil
	}

	group, err := v.source.Group(ctx, event.ID)
	if err != nil {
		if errors.Is(err, callstore.ErrNotPrimary) || errors.Is(err, callstore.ErrNotFound) {
			return v.Resync(ctx)
		}
		return fmt.Errorf("refetch group %d: %w", event.ID, err)
	}
	v.view.Confirm(group)
	return nil
}
