package callstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const recordColumns = "id, client_id, caller_phone, kind, status, observed_at, claim_owner, claimed_at, recipients, merged_into_id, note_id, created_at, updated_at"

// Insert persists a new call record. The caller phone plus observation
// timestamp act as the ingestion idempotency key; retrying the same
// observation returns ErrDuplicateObservation.
func (s *Store) Insert(ctx context.Context, rec *Record) (*Record, error) {
	if rec == nil {
		return nil, errors.New("record is nil")
	}
	if rec.CallerPhone == "" {
		return nil, errors.New("caller phone is required")
	}
	now := time.Now().UTC()
	recipients, err := marshalRecipients(rec.Recipients)
	if err != nil {
		return nil, err
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO call_records (
            client_id, caller_phone, kind, status, observed_at,
            claim_owner, claimed_at, recipients, merged_into_id, note_id,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableInt64(rec.ClientID),
		rec.CallerPhone,
		rec.Kind,
		rec.Status,
		formatTime(rec.ObservedAt),
		nullableString(rec.ClaimOwner),
		nullableTime(rec.ClaimedAt),
		recipients,
		nullableInt64(rec.MergedIntoID),
		nullableInt64(rec.NoteID),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("%w: %s at %s", ErrDuplicateObservation, rec.CallerPhone, rec.ObservedAt)
		}
		return nil, fmt.Errorf("insert call record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	s.publish(tableCallRecords, OpInsert, id)
	return s.GetByID(ctx, id)
}

// GetByID fetches a call record by identifier, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM call_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get call record: %w", err)
	}
	return rec, nil
}

// Group reassembles the call group rooted at the given primary record.
// Returns ErrNotFound when the primary does not exist and ErrNotPrimary when
// the identifier addresses a merged record.
func (s *Store) Group(ctx context.Context, primaryID int64) (*Group, error) {
	primary, err := s.GetByID(ctx, primaryID)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, fmt.Errorf("call group %d: %w", primaryID, ErrNotFound)
	}
	if !primary.IsPrimary() {
		return nil, fmt.Errorf("call record %d: %w", primaryID, ErrNotPrimary)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM call_records WHERE merged_into_id = ? ORDER BY observed_at`,
		primaryID,
	)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	group := &Group{Primary: primary}
	for rows.Next() {
		member, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		group.Members = append(group.Members, member)
	}
	return group, rows.Err()
}

// OpenPrimaryForCaller finds the most recently created open primary record
// for a caller whose observation lies strictly within the merge window of
// the reference time. Returns nil when no eligible primary exists.
func (s *Store) OpenPrimaryForCaller(ctx context.Context, phone string, window time.Duration, ref time.Time) (*Record, error) {
	cutoff := ref.Add(-window)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recordColumns+` FROM call_records
         WHERE caller_phone = ? AND status IN (?, ?) AND merged_into_id IS NULL
           AND observed_at > ? AND observed_at <= ?
         ORDER BY created_at DESC, id DESC LIMIT 1`,
		phone,
		StatusMissed,
		StatusReserved,
		formatTime(cutoff),
		formatTime(ref),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open primary: %w", err)
	}
	return rec, nil
}

// CompletedPrimaryForCaller finds the most recent completed primary with a
// linked follow-up note within the window. This supports the legacy display
// aggregation path only; it never reopens a completed record.
func (s *Store) CompletedPrimaryForCaller(ctx context.Context, phone string, window time.Duration, ref time.Time) (*Record, error) {
	cutoff := ref.Add(-window)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recordColumns+` FROM call_records
         WHERE caller_phone = ? AND status = ? AND note_id IS NOT NULL AND merged_into_id IS NULL
           AND observed_at > ? AND observed_at <= ?
         ORDER BY created_at DESC, id DESC LIMIT 1`,
		phone,
		StatusCompleted,
		formatTime(cutoff),
		formatTime(ref),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find completed primary: %w", err)
	}
	return rec, nil
}

// UnlinkedMergedForCaller returns merged-kind records for a caller that
// never received a merge link, observed within the window before the
// reference time. The legacy display aggregation path attaches these to a
// completed primary without touching their rows.
func (s *Store) UnlinkedMergedForCaller(ctx context.Context, phone string, window time.Duration, ref time.Time) ([]*Record, error) {
	cutoff := ref.Add(-window)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM call_records
         WHERE caller_phone = ? AND kind = ? AND merged_into_id IS NULL
           AND observed_at > ? AND observed_at <= ?
         ORDER BY observed_at`,
		phone,
		KindMerged,
		formatTime(cutoff),
		formatTime(ref),
	)
	if err != nil {
		return nil, fmt.Errorf("find unlinked merged records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListPrimaries returns primary records filtered by status set (or all
// primaries when no status is provided), ordered by observation time.
func (s *Store) ListPrimaries(ctx context.Context, statuses ...Status) ([]*Record, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + recordColumns + ` FROM call_records WHERE merged_into_id IS NULL`
	orderClause := ` ORDER BY observed_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` AND status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list primaries: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// NeedsAttention returns completed primaries without a linked follow-up note.
func (s *Store) NeedsAttention(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM call_records
         WHERE status = ? AND note_id IS NULL AND merged_into_id IS NULL
         ORDER BY observed_at`,
		StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("list needs attention: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LinkNote attaches a follow-up note to a call record.
func (s *Store) LinkNote(ctx context.Context, callID, noteID int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE call_records SET note_id = ?, updated_at = ? WHERE id = ?`,
		noteID,
		formatTime(time.Now().UTC()),
		callID,
	)
	if err != nil {
		return fmt.Errorf("link note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("call record %d: %w", callID, ErrNotFound)
	}
	s.publish(tableCallRecords, OpUpdate, callID)
	return nil
}

// Stats returns a count of call records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM call_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("call stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates call state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	var merged int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM call_records WHERE merged_into_id IS NOT NULL`)
	if err := row.Scan(&merged); err != nil {
		return HealthSummary{}, fmt.Errorf("count merged records: %w", err)
	}

	health := HealthSummary{Merged: merged}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusMissed:
			health.Missed += count
		case StatusReserved:
			health.Reserved += count
		case StatusCompleted:
			health.Completed += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the call database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: fmt.Sprintf("%d", schemaVersion),
	}

	if s.path == "" {
		return health, errors.New("call database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat call database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("call database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	var statfs unix.Statfs_t
	if err := unix.Statfs(s.path, &statfs); err == nil {
		health.FreeDiskBytes = statfs.Bavail * uint64(statfs.Bsize)
	}

	if s.db == nil {
		return health, errors.New("call database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping call database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'call_records'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
		} else {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM call_records")
		if err := row.Scan(&health.TotalRecords); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count call records: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id            int64
		clientID      sql.NullInt64
		callerPhone   string
		kindStr       string
		statusStr     string
		observedRaw   string
		claimOwner    sql.NullString
		claimedRaw    sql.NullString
		recipientsRaw sql.NullString
		mergedInto    sql.NullInt64
		noteID        sql.NullInt64
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&clientID,
		&callerPhone,
		&kindStr,
		&statusStr,
		&observedRaw,
		&claimOwner,
		&claimedRaw,
		&recipientsRaw,
		&mergedInto,
		&noteID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:          id,
		CallerPhone: callerPhone,
		Kind:        Kind(kindStr),
		Status:      Status(statusStr),
		ClaimOwner:  claimOwner.String,
	}
	if clientID.Valid {
		value := clientID.Int64
		rec.ClientID = &value
	}
	if mergedInto.Valid {
		value := mergedInto.Int64
		rec.MergedIntoID = &value
	}
	if noteID.Valid {
		value := noteID.Int64
		rec.NoteID = &value
	}
	if recipientsRaw.Valid && recipientsRaw.String != "" {
		if err := json.Unmarshal([]byte(recipientsRaw.String), &rec.Recipients); err != nil {
			return nil, fmt.Errorf("decode recipients: %w", err)
		}
	}
	if observed, err := parseTimeString(observedRaw); err == nil {
		rec.ObservedAt = observed
	}
	if claimedRaw.Valid {
		if claimed, err := parseTimeString(claimedRaw.String); err == nil {
			rec.ClaimedAt = &claimed
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}

func marshalRecipients(recipients []string) (string, error) {
	if recipients == nil {
		recipients = []string{}
	}
	data, err := json.Marshal(recipients)
	if err != nil {
		return "", fmt.Errorf("encode recipients: %w", err)
	}
	return string(data), nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
