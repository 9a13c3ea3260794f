package callstore

import (
	"context"
	"fmt"
	"time"
)

// Claim atomically reserves every open record in the group for the given
// agent. The conditional predicate makes the store the sole arbiter when two
// agents race: exactly one update takes effect and the loser receives a
// ConflictError naming the winner. The NOT EXISTS clause extends the guard to
// the whole group, so a missed attempt that merged into an already-reserved
// group can only be picked up by the holding agent.
//
// Claiming a group the agent already holds is an idempotent no-op.
func (s *Store) Claim(ctx context.Context, groupID int64, agentID string) (*Group, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent id is required")
	}
	group, err := s.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE call_records
         SET status = ?, claim_owner = ?, claimed_at = ?, updated_at = ?
         WHERE (id = ? OR merged_into_id = ?)
           AND status = ? AND claim_owner IS NULL
           AND NOT EXISTS (
               SELECT 1 FROM call_records held
               WHERE (held.id = ? OR held.merged_into_id = ?)
                 AND held.claim_owner IS NOT NULL
                 AND held.claim_owner <> ?
           )`,
		StatusReserved,
		agentID,
		formatTime(now),
		formatTime(now),
		groupID,
		groupID,
		StatusMissed,
		groupID,
		groupID,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("claim group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	// Always re-fetch: the conditional update decides the outcome, the
	// authoritative rows report it.
	group, err = s.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if affected > 0 {
		s.publish(tableCallRecords, OpUpdate, groupID)
		return group, nil
	}

	switch {
	case group.Primary.ClaimOwner == agentID:
		// Retried claim by the current owner.
		return group, nil
	case group.Primary.ClaimOwner != "":
		return group, &ConflictError{Owner: group.Primary.ClaimOwner}
	case group.Primary.Status == StatusCompleted:
		return group, fmt.Errorf("claim group %d: group already completed", groupID)
	default:
		return group, fmt.Errorf("claim group %d: no open records", groupID)
	}
}

// Release returns every reserved record in the group to missed and clears
// the claim fields. Any requester may release: the emergency override is
// intentional, so no ownership predicate is applied. Completed records are
// never touched.
func (s *Store) Release(ctx context.Context, groupID int64) (*Group, error) {
	if _, err := s.Group(ctx, groupID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE call_records
         SET status = ?, claim_owner = NULL, claimed_at = NULL, updated_at = ?
         WHERE (id = ? OR merged_into_id = ?) AND status = ?`,
		StatusMissed,
		formatTime(now),
		groupID,
		groupID,
		StatusReserved,
	)
	if err != nil {
		return nil, fmt.Errorf("release group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		s.publish(tableCallRecords, OpUpdate, groupID)
	}
	return s.Group(ctx, groupID)
}

// Complete marks every reserved record in the group completed. Completion is
// restricted to the current claim owner; a completed group is terminal and
// further Complete calls are no-ops.
func (s *Store) Complete(ctx context.Context, groupID int64, requesterID string) (*Group, error) {
	group, err := s.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.Primary.Status == StatusCompleted {
		return group, nil
	}
	if group.Primary.ClaimOwner != requesterID {
		return group, fmt.Errorf("complete group %d held by %q: %w", groupID, group.Primary.ClaimOwner, ErrNotOwner)
	}

	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE call_records
         SET status = ?, kind = ?, updated_at = ?
         WHERE (id = ? OR merged_into_id = ?) AND status = ?`,
		StatusCompleted,
		KindCompleted,
		formatTime(now),
		groupID,
		groupID,
		StatusReserved,
	)
	if err != nil {
		return nil, fmt.Errorf("complete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		s.publish(tableCallRecords, OpUpdate, groupID)
	}
	return s.Group(ctx, groupID)
}

// AddRecipient appends an agent to a record's recipient set. The set only
// ever grows; adding an agent twice is a no-op. A compare-and-swap on the
// serialized set keeps concurrent appends from losing entries.
func (s *Store) AddRecipient(ctx context.Context, callID int64, agentID string) error {
	if agentID == "" {
		return fmt.Errorf("agent id is required")
	}
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		rec, err := s.GetByID(ctx, callID)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("call record %d: %w", callID, ErrNotFound)
		}
		if rec.HasRecipient(agentID) {
			return nil
		}

		current, err := marshalRecipients(rec.Recipients)
		if err != nil {
			return err
		}
		next, err := marshalRecipients(append(rec.Recipients, agentID))
		if err != nil {
			return err
		}

		res, err := s.execWithRetry(
			ctx,
			`UPDATE call_records SET recipients = ?, updated_at = ? WHERE id = ? AND recipients = ?`,
			next,
			formatTime(time.Now().UTC()),
			callID,
			current,
		)
		if err != nil {
			return fmt.Errorf("add recipient: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected > 0 {
			s.publish(tableCallRecords, OpUpdate, callID)
			return nil
		}
		// Lost the swap to a concurrent append; reload and retry.
	}
	return fmt.Errorf("add recipient to record %d: contention retries exhausted", callID)
}
