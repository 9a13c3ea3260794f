package api

import (
	"context"
	"time"

	"calldesk/internal/callstore"
	"calldesk/internal/sla"
)

// CallReader abstracts the call store reads the API queries need.
type CallReader interface {
	ListPrimaries(ctx context.Context, statuses ...callstore.Status) ([]*callstore.Record, error)
	GetByID(ctx context.Context, id int64) (*callstore.Record, error)
	Group(ctx context.Context, primaryID int64) (*callstore.Group, error)
	NeedsAttention(ctx context.Context) ([]*callstore.Record, error)
	Stats(ctx context.Context) (map[callstore.Status]int, error)
}

// CallService exposes read-only call operations returning API DTOs. It also
// serves raw groups, so it doubles as the feed's group source.
type CallService struct {
	store        CallReader
	slaThreshold time.Duration
}

// NewCallService constructs a CallService around the provided reader.
func NewCallService(store CallReader, slaThreshold time.Duration) *CallService {
	if store == nil {
		return nil
	}
	if slaThreshold <= 0 {
		slaThreshold = sla.DefaultThreshold
	}
	return &CallService{store: store, slaThreshold: slaThreshold}
}

// List returns primary call records filtered by status.
func (s *CallService) List(ctx context.Context, statuses ...callstore.Status) ([]CallRecord, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.ListPrimaries(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromRecords(records), nil
}

// Describe fetches a single call record.
func (s *CallService) Describe(ctx context.Context, id int64) (*CallRecord, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	rec, err := s.store.GetByID(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	dto := FromRecord(rec)
	return &dto, nil
}

// DescribeGroup fetches a call group as a DTO.
func (s *CallService) DescribeGroup(ctx context.Context, primaryID int64) (*CallGroup, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	group, err := s.store.Group(ctx, primaryID)
	if err != nil {
		return nil, err
	}
	dto := FromGroup(group)
	return &dto, nil
}

// Group returns the raw group for a primary, satisfying feed.GroupSource.
func (s *CallService) Group(ctx context.Context, primaryID int64) (*callstore.Group, error) {
	return s.store.Group(ctx, primaryID)
}

// Groups assembles every open group, satisfying feed.GroupSource.
func (s *CallService) Groups(ctx context.Context) ([]*callstore.Group, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	primaries, err := s.store.ListPrimaries(ctx, callstore.StatusMissed, callstore.StatusReserved)
	if err != nil {
		return nil, err
	}
	groups := make([]*callstore.Group, 0, len(primaries))
	for _, primary := range primaries {
		group, err := s.store.Group(ctx, primary.ID)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// Alerts evaluates the SLA scan over every open group.
func (s *CallService) Alerts(ctx context.Context, now time.Time) ([]SlaAlert, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	groups, err := s.Groups(ctx)
	if err != nil {
		return nil, err
	}
	return FromAlerts(sla.Scan(groups, s.slaThreshold, now)), nil
}

// NeedsAttention lists completed calls still missing a follow-up note.
func (s *CallService) NeedsAttention(ctx context.Context) ([]CallRecord, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.NeedsAttention(ctx)
	if err != nil {
		return nil, err
	}
	return FromRecords(records), nil
}

// Stats returns call summary counts keyed by status string.
func (s *CallService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeCallStats(stats), nil
}
