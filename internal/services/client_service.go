package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kasira/billing-api/internal/models"
	"github.com/kasira/billing-api/internal/repository"
	"github.com/kasira/billing-api/pkg/logger"
)

// ClientService manages billed customers
type ClientService struct {
	store repository.Store
}

// NewClientService creates a new client service
func NewClientService(store repository.Store) *ClientService {
	return &ClientService{store: store}
}

// ClientInput carries the client fields for create and update
type ClientInput struct {
	Name       string
	Email      string
	PhoneWA    *string
	Address    *string
	IdentityNo *string
}

// CreateClient registers a new client
func (s *ClientService) CreateClient(ctx context.Context, in ClientInput) (*models.Client, error) {
	if in.Name == "" || in.Email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrValidation)
	}

	client := &models.Client{
		ID:         uuid.New(),
		Name:       in.Name,
		Email:      in.Email,
		PhoneWA:    in.PhoneWA,
		Address:    in.Address,
		IdentityNo: in.IdentityNo,
	}
	if err := s.store.Clients().Create(ctx, client); err != nil {
		return nil, fmt.Errorf("%w: insert client: %v", ErrStoreFailure, err)
	}

	logger.Info("client created", "client_id", client.ID, "name", client.Name)
	return client, nil
}

// GetClient returns one client by id
func (s *ClientService) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	client, err := s.store.Clients().FindByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "client")
	}
	return client, nil
}

// ListClients returns a page of clients
func (s *ClientService) ListClients(ctx context.Context, query *repository.ListQuery) ([]models.Client, int64, error) {
	clients, total, err := s.store.Clients().List(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list clients: %v", ErrStoreFailure, err)
	}
	return clients, total, nil
}

// UpdateClient edits a client's details
func (s *ClientService) UpdateClient(ctx context.Context, id uuid.UUID, in ClientInput) (*models.Client, error) {
	client, err := s.store.Clients().FindByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "client")
	}

	if in.Name != "" {
		client.Name = in.Name
	}
	if in.Email != "" {
		client.Email = in.Email
	}
	if in.PhoneWA != nil {
		client.PhoneWA = in.PhoneWA
	}
	if in.Address != nil {
		client.Address = in.Address
	}
	if in.IdentityNo != nil {
		client.IdentityNo = in.IdentityNo
	}

	if err := s.store.Clients().Update(ctx, client); err != nil {
		return nil, fmt.Errorf("%w: update client: %v", ErrStoreFailure, err)
	}
	return client, nil
}

// DeleteClient removes a client
func (s *ClientService) DeleteClient(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.Clients().FindByID(ctx, id); err != nil {
		return wrapLookup(err, "client")
	}
	if err := s.store.Clients().Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: delete client: %v", ErrStoreFailure, err)
	}

	logger.Info("client deleted", "client_id", id)
	return nil
}
