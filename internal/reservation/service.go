package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"calldesk/internal/callstore"
	"calldesk/internal/logging"
)

// Store is the persistence surface the service mutates through.
type Store interface {
	Claim(ctx context.Context, groupID int64, agentID string) (*callstore.Group, error)
	Release(ctx context.Context, groupID int64) (*callstore.Group, error)
	Complete(ctx context.Context, groupID int64, requesterID string) (*callstore.Group, error)
	AddRecipient(ctx context.Context, callID int64, agentID string) error
	Group(ctx context.Context, primaryID int64) (*callstore.Group, error)
	GetByID(ctx context.Context, id int64) (*callstore.Record, error)
}

// Notifier receives reservation-derived signals. Implementations must not
// block; failures are logged and never fail the mutation.
type Notifier interface {
	NotifyMultiAgentCall(ctx context.Context, groupID int64, agents []string) error
}

// Service wraps the store's claim operations with logging, the optimistic
// view, and notification hooks.
type Service struct {
	store    Store
	view     *View
	notifier Notifier
	logger   *slog.Logger
}

// NewService builds the reservation service. The notifier may be nil.
func NewService(store Store, view *View, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		view:     view,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "reservation"),
	}
}

// View returns the optimistic view the service maintains.
func (s *Service) View() *View {
	return s.view
}

// Claim reserves a whole call group for the agent. Claiming a group the
// agent already holds is an idempotent success; a group held by someone else
// fails with a ConflictError naming the owner.
func (s *Service) Claim(ctx context.Context, groupID int64, agentID string) (*callstore.Group, error) {
	s.view.Record(Intent{GroupID: groupID, Action: ActionClaim, AgentID: agentID})

	group, err := s.store.Claim(ctx, groupID, agentID)
	if err != nil {
		s.afterFailure(ctx, groupID, err)
		var conflict *callstore.ConflictError
		if errors.As(err, &conflict) {
			s.logger.Info("claim rejected",
				logging.Int64(logging.FieldGroupID, groupID),
				logging.String(logging.FieldAgentID, agentID),
				logging.String(logging.FieldEventType, "claim_conflict"),
				logging.String("owner", conflict.Owner))
			return nil, err
		}
		return nil, fmt.Errorf("claim group %d: %w", groupID, err)
	}

	s.view.Confirm(group)
	s.logger.Info("call group claimed",
		logging.Int64(logging.FieldGroupID, groupID),
		logging.String(logging.FieldAgentID, agentID),
		logging.String(logging.FieldEventType, "group_claimed"))
	return group, nil
}

// Release returns a claimed group to the missed pool. Any agent may release
// any claim; a release by someone other than the owner is the emergency
// override and is logged with the requester's identity.
func (s *Service) Release(ctx context.Context, groupID int64, requesterID string) (*callstore.Group, error) {
	before, err := s.store.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("release group %d: %w", groupID, err)
	}
	if before == nil {
		return nil, callstore.ErrNotFound
	}

	s.view.Record(Intent{GroupID: groupID, Action: ActionRelease, AgentID: requesterID})

	group, err := s.store.Release(ctx, groupID)
	if err != nil {
		s.afterFailure(ctx, groupID, err)
		return nil, fmt.Errorf("release group %d: %w", groupID, err)
	}

	s.view.Confirm(group)
	if before.ClaimOwner != "" && before.ClaimOwner != requesterID {
		s.logger.Warn("emergency release of another agent's claim",
			logging.Int64(logging.FieldGroupID, groupID),
			logging.String(logging.FieldAgentID, requesterID),
			logging.String(logging.FieldEventType, "emergency_release"),
			logging.String("previous_owner", before.ClaimOwner))
	} else {
		s.logger.Info("call group released",
			logging.Int64(logging.FieldGroupID, groupID),
			logging.String(logging.FieldAgentID, requesterID),
			logging.String(logging.FieldEventType, "group_released"))
	}
	return group, nil
}

// Complete marks a claimed group handled. Only the claim owner may complete;
// completing an already completed group is a no-op success.
func (s *Service) Complete(ctx context.Context, groupID int64, requesterID string) (*callstore.Group, error) {
	s.view.Record(Intent{GroupID: groupID, Action: ActionComplete, AgentID: requesterID})

	group, err := s.store.Complete(ctx, groupID, requesterID)
	if err != nil {
		s.afterFailure(ctx, groupID, err)
		if errors.Is(err, callstore.ErrNotOwner) {
			s.logger.Info("completion rejected",
				logging.Int64(logging.FieldGroupID, groupID),
				logging.String(logging.FieldAgentID, requesterID),
				logging.String(logging.FieldEventType, "complete_rejected"))
			return nil, err
		}
		return nil, fmt.Errorf("complete group %d: %w", groupID, err)
	}

	s.view.Confirm(group)
	s.logger.Info("call group completed",
		logging.Int64(logging.FieldGroupID, groupID),
		logging.String(logging.FieldAgentID, requesterID),
		logging.String(logging.FieldEventType, "group_completed"))
	return group, nil
}

// AddRecipient records that another agent observed the call. When the group's
// recipient union grows past one agent the notifier is signalled so the team
// can coordinate before two people call back.
func (s *Service) AddRecipient(ctx context.Context, callID int64, agentID string) (*callstore.Group, error) {
	if err := s.store.AddRecipient(ctx, callID, agentID); err != nil {
		s.afterFailure(ctx, callID, err)
		return nil, fmt.Errorf("add recipient to call %d: %w", callID, err)
	}

	rec, err := s.store.GetByID(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("refetch call %d: %w", callID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("refetch call %d: %w", callID, callstore.ErrNotFound)
	}
	primaryID := rec.ID
	if rec.MergedIntoID != nil {
		primaryID = *rec.MergedIntoID
	}
	group, err := s.store.Group(ctx, primaryID)
	if err != nil {
		return nil, fmt.Errorf("refetch group %d: %w", primaryID, err)
	}

	s.view.Confirm(group)
	if agents := group.RecipientUnion(); len(agents) > 1 {
		s.notifyMultiAgent(ctx, primaryID, agents)
	}
	return group, nil
}

// Refresh re-reads a group from the store and confirms it into the view.
// Callers use it after a failed or timed-out mutation.
func (s *Service) Refresh(ctx context.Context, groupID int64) (*callstore.Group, error) {
	group, err := s.store.Group(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("refresh group %d: %w", groupID, err)
	}
	s.view.Confirm(group)
	return group, nil
}

// afterFailure invalidates the optimistic view and, for transient store
// errors, immediately attempts the mandatory re-fetch.
func (s *Service) afterFailure(ctx context.Context, groupID int64, cause error) {
	s.view.Invalidate()
	if errors.Is(cause, callstore.ErrNotFound) {
		return
	}
	if !callstore.IsTransient(cause) {
		if _, err := s.Refresh(ctx, groupID); err != nil {
			s.logger.Warn("re-fetch after failed mutation failed",
				logging.Int64(logging.FieldGroupID, groupID),
				logging.Error(err))
		}
		return
	}
	s.logger.Warn("mutation hit transient store error",
		logging.Int64(logging.FieldGroupID, groupID),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "state is unknown; the view was invalidated pending re-fetch"))
}

func (s *Service) notifyMultiAgent(ctx context.Context, groupID int64, agents []string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyMultiAgentCall(ctx, groupID, agents); err != nil {
		s.logger.Warn("multi-agent notification failed",
			logging.Int64(logging.FieldGroupID, groupID),
			logging.Error(err))
		return
	}
	s.logger.Info("multi-agent call signalled",
		logging.Int64(logging.FieldGroupID, groupID),
		logging.String(logging.FieldEventType, "multi_agent_call"),
		logging.Int64("agents", int64(len(agents))))
}
