package api

import (
	"context"
	"fmt"

	"calldesk/internal/callstore"
	"calldesk/internal/ingest"
)

// ClientStore abstracts registry persistence for the client service.
type ClientStore interface {
	AddClient(ctx context.Context, phone, name, address, notes string) (*callstore.Client, error)
	ListClients(ctx context.Context) ([]*callstore.Client, error)
	RemoveClient(ctx context.Context, id int64) (bool, error)
}

// ClientService exposes registry management returning API DTOs.
type ClientService struct {
	store ClientStore
}

// NewClientService constructs a ClientService around the provided store.
func NewClientService(store ClientStore) *ClientService {
	if store == nil {
		return nil
	}
	return &ClientService{store: store}
}

// Add registers a client. The phone number is canonicalized so registry
// lookups at ingestion time match; duplicates fail.
func (s *ClientService) Add(ctx context.Context, phone, name, address, notes string) (*ClientInfo, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	canonical, err := ingest.CanonicalPhone(phone)
	if err != nil {
		return nil, fmt.Errorf("client phone: %w", err)
	}
	client, err := s.store.AddClient(ctx, canonical, name, address, notes)
	if err != nil {
		return nil, err
	}
	dto := FromClient(client)
	return &dto, nil
}

// List returns the whole registry.
func (s *ClientService) List(ctx context.Context) ([]ClientInfo, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	return FromClients(clients), nil
}

// Remove deletes a client and cascades to its call records.
func (s *ClientService) Remove(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.store == nil {
		return false, nil
	}
	return s.store.RemoveClient(ctx, id)
}
