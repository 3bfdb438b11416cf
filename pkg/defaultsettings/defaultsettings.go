// Package defaultsettings implements the DefaultAppSettings singleton: the
// default maxRps/dailyRequestsLimit given to a newly provisioned App (the
// DEFAULT_* env values are used only when this row cannot be read).
// It is read only at provisioning time, never on the gateway hot path.
package defaultsettings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Settings is the DefaultAppSettings singleton.
type Settings struct {
	DefaultMaxRps             float64   `json:"defaultMaxRps"`
	DefaultDailyRequestsLimit int64     `json:"defaultDailyRequestsLimit"`
	UpdatedAt                 time.Time `json:"updatedAt"`
}

// UpdateRequest is the JSON body for PUT /admin/default-app-settings.
type UpdateRequest struct {
	DefaultMaxRps             float64 `json:"defaultMaxRps" validate:"required,gt=0"`
	DefaultDailyRequestsLimit int64   `json:"defaultDailyRequestsLimit" validate:"required,gt=0"`
}

// Store provides database operations for the DefaultAppSettings singleton.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given global pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the current DefaultAppSettings. The singleton row is seeded
// by the initial migration, so this never returns pgx.ErrNoRows in practice.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	var settings Settings
	err := s.pool.QueryRow(ctx,
		`SELECT default_max_rps, default_daily_requests_limit, updated_at FROM default_app_settings WHERE id = true`,
	).Scan(&settings.DefaultMaxRps, &settings.DefaultDailyRequestsLimit, &settings.UpdatedAt)
	if err != nil {
		return Settings{}, fmt.Errorf("getting default app settings: %w", err)
	}
	return settings, nil
}

// Update overwrites the DefaultAppSettings singleton.
func (s *Store) Update(ctx context.Context, req UpdateRequest) (Settings, error) {
	var settings Settings
	err := s.pool.QueryRow(ctx,
		`UPDATE default_app_settings SET default_max_rps = $1, default_daily_requests_limit = $2, updated_at = now()
		WHERE id = true
		RETURNING default_max_rps, default_daily_requests_limit, updated_at`,
		req.DefaultMaxRps, req.DefaultDailyRequestsLimit,
	).Scan(&settings.DefaultMaxRps, &settings.DefaultDailyRequestsLimit, &settings.UpdatedAt)
	if err != nil {
		return Settings{}, fmt.Errorf("updating default app settings: %w", err)
	}
	return settings, nil
}
