package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmailTaken is returned by Register when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// Service encapsulates user registration business logic.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates a user Service backed by the given global pool.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{
		store:  NewStore(pool),
		logger: logger,
	}
}

// Register hashes the password and creates a new user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Response, error) {
	if _, err := s.store.FindByEmail(ctx, req.Email); err == nil {
		return Response{}, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Response{}, fmt.Errorf("checking existing email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Response{}, fmt.Errorf("hashing password: %w", err)
	}

	row, err := s.store.Create(ctx, req.Email, string(hash), req.DisplayName)
	if err != nil {
		return Response{}, fmt.Errorf("creating user: %w", err)
	}
	return row.ToResponse(), nil
}
