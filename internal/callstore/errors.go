package callstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrNotFound indicates the requested record or client does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateObservation indicates an observation with the same caller and
// timestamp was already ingested. Retried offline queues hit this on purpose.
var ErrDuplicateObservation = errors.New("observation already recorded")

// ErrConflict indicates a claim was rejected because another agent already
// holds the group.
var ErrConflict = errors.New("call group already claimed")

// ErrNotOwner indicates a completion attempt by an agent that does not hold
// the claim.
var ErrNotOwner = errors.New("requester does not hold the claim")

// ErrNotPrimary indicates a group operation was addressed at a merged record
// instead of its primary.
var ErrNotPrimary = errors.New("record is not a group primary")

// ConflictError carries the identity of the current claim owner so the UI can
// surface "already claimed by X" instead of a generic failure.
type ConflictError struct {
	Owner string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("call group already claimed by %s", e.Owner)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// IsTransient reports whether an error is a recoverable store failure
// (timeout, lock contention, network) that callers should handle by
// re-fetching rather than surfacing as a hard failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return isSQLiteBusy(err)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
