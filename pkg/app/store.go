package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appColumns = `id, owner_user_id, name, description, api_key, chain_name, chain_id,
	max_rps, daily_requests_limit, total_requests, daily_requests, last_reset_date,
	active, created_at, updated_at`

// Row represents a row returned from the apps table.
type Row struct {
	ID                 uuid.UUID
	OwnerUserID        uuid.UUID
	Name               string
	Description        string
	APIKey             uuid.UUID
	ChainName          string
	ChainID            string
	MaxRps             float64
	DailyRequestsLimit int64
	TotalRequests      int64
	DailyRequests      int64
	LastResetDate      time.Time
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ToResponse converts a Row to a Response DTO.
func (a *Row) ToResponse() Response {
	return Response{
		ID:                 a.ID,
		OwnerUserID:        a.OwnerUserID,
		Name:               a.Name,
		Description:        a.Description,
		APIKey:             a.APIKey,
		ChainName:          a.ChainName,
		ChainID:            a.ChainID,
		MaxRps:             a.MaxRps,
		DailyRequestsLimit: a.DailyRequestsLimit,
		TotalRequests:      a.TotalRequests,
		DailyRequests:      a.DailyRequests,
		LastResetDate:      a.LastResetDate,
		Active:             a.Active,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func scanRow(row pgx.Row) (Row, error) {
	var a Row
	err := row.Scan(
		&a.ID, &a.OwnerUserID, &a.Name, &a.Description, &a.APIKey, &a.ChainName, &a.ChainID,
		&a.MaxRps, &a.DailyRequestsLimit, &a.TotalRequests, &a.DailyRequests, &a.LastResetDate,
		&a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// Store provides database operations for Apps, backed by the global pool.
// This is the Credential & Quota Store (C2): the only component permitted
// to mutate App counters, and it does so with atomic UPDATE ... RETURNING
// statements rather than read-modify-write.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an app Store backed by the given global connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a new App. apiKey is generated server-side (UUIDv4) by the
// database default; the caller never supplies it.
func (s *Store) Create(ctx context.Context, ownerUserID uuid.UUID, name, description, chainName, chainID string, maxRps float64, dailyRequestsLimit int64) (Row, error) {
	query := `INSERT INTO apps (owner_user_id, name, description, chain_name, chain_id, max_rps, daily_requests_limit)
	VALUES ($1, $2, $3, lower($4), $5, $6, $7)
	RETURNING ` + appColumns

	row := s.pool.QueryRow(ctx, query, ownerUserID, name, description, chainName, chainID, maxRps, dailyRequestsLimit)
	return scanRow(row)
}

// FindOne returns a single App by ID.
func (s *Store) FindOne(ctx context.Context, id uuid.UUID) (Row, error) {
	query := `SELECT ` + appColumns + ` FROM apps WHERE id = $1`
	return scanRow(s.pool.QueryRow(ctx, query, id))
}

// FindByAPIKey returns a single App by its api_key, regardless of active state.
func (s *Store) FindByAPIKey(ctx context.Context, apiKey uuid.UUID) (Row, error) {
	query := `SELECT ` + appColumns + ` FROM apps WHERE api_key = $1`
	return scanRow(s.pool.QueryRow(ctx, query, apiKey))
}

// ListByOwner returns all Apps owned by the given user.
func (s *Store) ListByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]Row, error) {
	query := `SELECT ` + appColumns + ` FROM apps WHERE owner_user_id = $1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("listing apps: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		a, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning app row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountBy returns the number of Apps owned by the given user.
func (s *Store) CountBy(ctx context.Context, ownerUserID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM apps WHERE owner_user_id = $1`, ownerUserID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting apps: %w", err)
	}
	return count, nil
}

// AdmitByApiKey atomically finds the active App with the given api_key,
// rolls dailyRequests over to the new calendar day if lastResetDate has
// fallen behind, and increments totalRequests/dailyRequests by one — all in
// the same statement, so the row returned to the caller already reflects the
// post-reset, post-increment state (no separate re-read is needed to get an
// accurate dailyRequests for the limit comparison). If no matching, active
// App exists, Admitted is false and no row is mutated.
func (s *Store) AdmitByApiKey(ctx context.Context, apiKey uuid.UUID) (AdmitResult, error) {
	query := `UPDATE apps SET
		total_requests = total_requests + 1,
		daily_requests = CASE WHEN last_reset_date = current_date THEN daily_requests + 1 ELSE 1 END,
		last_reset_date = current_date,
		updated_at = now()
	WHERE api_key = $1 AND active = true
	RETURNING ` + appColumns

	row, err := scanRow(s.pool.QueryRow(ctx, query, apiKey))
	if err != nil {
		if err == pgx.ErrNoRows {
			return AdmitResult{Admitted: false, Reason: InvalidOrInactive}, nil
		}
		return AdmitResult{}, fmt.Errorf("admitting api key: %w", err)
	}

	return AdmitResult{App: row, Admitted: true}, nil
}

// ResetDailyIfNeeded resets dailyRequests to zero and bumps lastResetDate
// when the App's last reset was not today. AdmitByApiKey already performs
// this roll-over atomically on the proxied hot path; ResetDailyIfNeeded is
// for the read paths that don't go through AdmitByApiKey (the owner-facing
// Get/ListByOwner dashboard views), so a dormant App's counters don't show
// yesterday's dailyRequests to its owner. Idempotent under concurrency:
// concurrent callers race harmlessly on the same UPDATE (last-writer-wins).
// It reports whether a reset actually happened, so a caller holding a
// possibly-stale in-memory copy of the row knows whether to re-fetch it.
func (s *Store) ResetDailyIfNeeded(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE apps SET
		daily_requests = 0,
		last_reset_date = current_date,
		updated_at = now()
	WHERE id = $1 AND last_reset_date <> current_date`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("resetting daily counters: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Save persists a partial update to mutable App fields (name, description,
// active, maxRps, dailyRequestsLimit); nil fields in req are left unchanged.
// It returns the updated row.
func (s *Store) Save(ctx context.Context, id uuid.UUID, req UpdateRequest) (Row, error) {
	query := `UPDATE apps SET
		name = COALESCE($2, name),
		description = COALESCE($3, description),
		active = COALESCE($4, active),
		max_rps = COALESCE($5, max_rps),
		daily_requests_limit = COALESCE($6, daily_requests_limit),
		updated_at = now()
	WHERE id = $1
	RETURNING ` + appColumns

	row := s.pool.QueryRow(ctx, query, id, req.Name, req.Description, req.Active, req.MaxRps, req.DailyRequestsLimit)
	return scanRow(row)
}

// Delete permanently removes an App.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM apps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting app: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
