package user

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, display_name, role, is_active, created_at, updated_at`

// Store provides database operations for users, backed by the global pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a user Store backed by the given global connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Row represents a row returned from the users table.
type Row struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	DisplayName  string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ToResponse converts a Row to a Response DTO.
func (u *Row) ToResponse() Response {
	return Response{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func scanRow(row pgx.Row) (Row, error) {
	var u Row
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Role, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// Create inserts a new user with role "user" and returns the created row.
func (s *Store) Create(ctx context.Context, email, passwordHash, displayName string) (Row, error) {
	query := `INSERT INTO users (email, password_hash, display_name, role, is_active)
	VALUES ($1, $2, $3, 'user', true)
	RETURNING ` + userColumns

	row := s.pool.QueryRow(ctx, query, email, passwordHash, displayName)
	return scanRow(row)
}

// FindByEmail returns the user with the given email, or pgx.ErrNoRows.
func (s *Store) FindByEmail(ctx context.Context, email string) (Row, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active = true`
	row := s.pool.QueryRow(ctx, query, email)
	return scanRow(row)
}

// Get returns a single user by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Row, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, id)
	return scanRow(row)
}

// CountApps returns the number of Apps owned by the given user. The
// provisioning bound (spec.md §3: ≤5 apps per user) is enforced by
// app.Service.Create through app.Store.CountBy; nothing calls CountApps.
func (s *Store) CountApps(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM apps WHERE owner_user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting apps: %w", err)
	}
	return count, nil
}
