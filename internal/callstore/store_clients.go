package callstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const clientColumns = "id, phone, name, address, notes, created_at, updated_at"

// ErrDuplicateClient indicates a client with the same phone already exists.
// The phone number is immutable once created; changing it is delete+recreate.
var ErrDuplicateClient = errors.New("client phone already registered")

// AddClient registers a new monitored client.
func (s *Store) AddClient(ctx context.Context, phone, name, address, notes string) (*Client, error) {
	if phone == "" {
		return nil, errors.New("client phone is required")
	}
	if name == "" {
		return nil, errors.New("client name is required")
	}
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO clients (phone, name, address, notes, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		phone,
		name,
		nullableString(address),
		nullableString(notes),
		now,
		now,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateClient, phone)
		}
		return nil, fmt.Errorf("insert client: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	s.publish(tableClients, OpInsert, id)
	return s.ClientByID(ctx, id)
}

// ClientByID fetches a client by identifier, or nil when absent.
func (s *Store) ClientByID(ctx context.Context, id int64) (*Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	client, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

// ClientByPhone fetches a client by canonical phone number, or nil when absent.
func (s *Store) ClientByPhone(ctx context.Context, phone string) (*Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE phone = ?`, phone)
	client, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client by phone: %w", err)
	}
	return client, nil
}

// ListClients returns all registered clients ordered by name.
func (s *Store) ListClients(ctx context.Context) ([]*Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

// RemoveClient deletes a client; linked call records are removed by the
// foreign-key cascade.
func (s *Store) RemoveClient(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete client: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		s.publish(tableClients, OpDelete, id)
	}
	return affected > 0, nil
}

// MonitoredPhones returns the set of client phone numbers used as the
// ingestion filter.
func (s *Store) MonitoredPhones(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT phone FROM clients`)
	if err != nil {
		return nil, fmt.Errorf("list monitored phones: %w", err)
	}
	defer rows.Close()

	phones := make(map[string]struct{})
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, err
		}
		phones[phone] = struct{}{}
	}
	return phones, rows.Err()
}

func scanClient(scanner interface{ Scan(dest ...any) error }) (*Client, error) {
	var (
		id         int64
		phone      string
		name       string
		address    sql.NullString
		notes      sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &phone, &name, &address, &notes, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	client := &Client{
		ID:      id,
		Phone:   phone,
		Name:    name,
		Address: address.String,
		Notes:   notes.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		client.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		client.UpdatedAt = updated
	}
	return client, nil
}
