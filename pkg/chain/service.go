package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNameTaken is returned by Create when the chain name is already registered.
var ErrNameTaken = errors.New("chain name already registered")

// Service encapsulates Chain CRUD business logic for the admin API.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates a chain Service backed by the given global pool.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{store: NewStore(pool), logger: logger}
}

// Create registers a new Chain.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Chain, error) {
	if _, err := s.store.GetByName(ctx, req.Name); err == nil {
		return Chain{}, ErrNameTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Chain{}, fmt.Errorf("checking existing chain name: %w", err)
	}

	c, err := s.store.Create(ctx, req)
	if err != nil {
		return Chain{}, fmt.Errorf("creating chain: %w", err)
	}
	return c, nil
}

// Get returns a single Chain by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Chain, error) {
	return s.store.Get(ctx, id)
}

// List returns all registered Chains.
func (s *Service) List(ctx context.Context) ([]Chain, error) {
	return s.store.List(ctx)
}

// Update applies a partial update to a Chain.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Chain, error) {
	c, err := s.store.Update(ctx, id, req)
	if err != nil {
		return Chain{}, fmt.Errorf("updating chain: %w", err)
	}
	return c, nil
}

// Delete permanently removes a Chain.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}
