package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"calldesk/internal/callstore"
	"calldesk/internal/logging"
	"calldesk/internal/merge"
)

// Store is the persistence surface the ingestor writes through.
type Store interface {
	merge.Finder
	ClientByPhone(ctx context.Context, phone string) (*callstore.Client, error)
	Insert(ctx context.Context, rec *callstore.Record) (*callstore.Record, error)
}

// Ingestor normalizes raw observations into persisted call records.
type Ingestor struct {
	store   Store
	lines   *Lines
	policy  merge.Policy
	agentID string
	logger  *slog.Logger
}

// NewIngestor wires the ingestion pipeline. The lines filter is shared with
// the line monitor; the agent id is recorded as the initial recipient of
// every ingested call.
func NewIngestor(store Store, lines *Lines, policy merge.Policy, agentID string, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		store:   store,
		lines:   lines,
		policy:  policy,
		agentID: agentID,
		logger:  logging.NewComponentLogger(logger, "ingest"),
	}
}

// Ingest processes one observation. Observations outside the registry, off
// the business line, or with malformed numbers are dropped silently (logged,
// nil record, nil error). ErrLineSelectionRequired suspends ingestion and is
// returned to the caller. Duplicate observations resolve to a nil record
// without error, which makes offline retries idempotent.
func (i *Ingestor) Ingest(ctx context.Context, obs Observation) (*callstore.Record, error) {
	allowed, err := i.lines.Allow(obs.LineID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		i.logger.Debug("observation off business line",
			logging.String("line_id", obs.LineID))
		return nil, nil
	}

	phone, err := CanonicalPhone(obs.Phone)
	if err != nil {
		i.logger.Debug("dropping malformed observation",
			logging.Error(err))
		return nil, nil
	}

	client, err := i.store.ClientByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("registry lookup: %w", err)
	}
	if client == nil {
		i.logger.Debug("caller not monitored",
			logging.String(logging.FieldCaller, phone))
		return nil, nil
	}

	rec := &callstore.Record{
		ClientID:    &client.ID,
		CallerPhone: phone,
		ObservedAt:  obs.Timestamp.UTC(),
		Recipients:  []string{i.agentID},
	}
	if obs.Direction == DirectionIncoming && obs.Duration <= 0 {
		rec.Kind = callstore.KindMissed
		rec.Status = callstore.StatusMissed
	} else {
		rec.Kind = callstore.KindCompleted
		rec.Status = callstore.StatusCompleted
	}

	if _, err := i.policy.Classify(ctx, i.store, rec); err != nil {
		return nil, err
	}

	stored, err := i.store.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, callstore.ErrDuplicateObservation) {
			i.logger.Debug("observation already ingested",
				logging.String(logging.FieldCaller, phone),
				logging.Time("observed_at", rec.ObservedAt))
			return nil, nil
		}
		return nil, err
	}

	logger := i.logger.With(
		logging.Int64(logging.FieldCallID, stored.ID),
		logging.String(logging.FieldCaller, phone))
	if stored.MergedIntoID != nil {
		logger.Info("call attempt merged",
			logging.String(logging.FieldEventType, "call_merged"),
			logging.Int64(logging.FieldGroupID, *stored.MergedIntoID))
	} else {
		logger.Info("call recorded",
			logging.String(logging.FieldEventType, "call_recorded"),
			logging.String("kind", string(stored.Kind)))
	}
	return stored, nil
}
