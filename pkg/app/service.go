package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nodebridge/rpc-gateway/pkg/chain"
	"github.com/nodebridge/rpc-gateway/pkg/defaultsettings"
)

// ErrTooManyApps is returned by Create when the owner already has the
// maximum number of Apps allowed.
var ErrTooManyApps = errors.New("maximum number of apps reached")

// ErrChainUnavailable is returned by Create when the requested chain does
// not exist or is not enabled.
var ErrChainUnavailable = errors.New("chain not found or not enabled")

// Service encapsulates App provisioning and management business logic.
type Service struct {
	store          *Store
	chains         *chain.Store
	settings       *defaultsettings.Store
	logger         *slog.Logger
	maxAppsPerUser int

	// fallbackMaxRps/fallbackDailyRequests are the DEFAULT_MAX_RPS /
	// DEFAULT_DAILY_REQUESTS env vars, consulted only if the
	// DefaultAppSettings singleton can't be read (it's seeded by the initial
	// migration, so in practice this only matters if that row was deleted
	// out-of-band).
	fallbackMaxRps        float64
	fallbackDailyRequests int64
}

// NewService creates an app Service backed by the given global pool.
// fallbackMaxRps/fallbackDailyRequests back the DefaultAppSettings read in
// Create if the singleton row is ever unreadable.
func NewService(pool *pgxpool.Pool, logger *slog.Logger, maxAppsPerUser int, fallbackMaxRps float64, fallbackDailyRequests int64) *Service {
	return &Service{
		store:                 NewStore(pool),
		chains:                chain.NewStore(pool),
		settings:              defaultsettings.NewStore(pool),
		logger:                logger,
		maxAppsPerUser:        maxAppsPerUser,
		fallbackMaxRps:        fallbackMaxRps,
		fallbackDailyRequests: fallbackDailyRequests,
	}
}

// Create provisions a new App for the given owner, bounded to at most
// maxAppsPerUser apps, using DefaultAppSettings for the initial
// maxRps/dailyRequestsLimit.
func (s *Service) Create(ctx context.Context, ownerUserID uuid.UUID, req CreateRequest) (Response, error) {
	count, err := s.store.CountBy(ctx, ownerUserID)
	if err != nil {
		return Response{}, fmt.Errorf("counting existing apps: %w", err)
	}
	if count >= s.maxAppsPerUser {
		return Response{}, ErrTooManyApps
	}

	c, err := s.chains.GetByName(ctx, req.ChainName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Response{}, ErrChainUnavailable
		}
		return Response{}, fmt.Errorf("looking up chain: %w", err)
	}
	if !c.Enabled {
		return Response{}, ErrChainUnavailable
	}

	maxRps, dailyRequestsLimit := s.fallbackMaxRps, s.fallbackDailyRequests
	if defaults, err := s.settings.Get(ctx); err != nil {
		s.logger.Warn("loading default app settings, falling back to env defaults", "error", err,
			"defaultMaxRps", maxRps, "defaultDailyRequests", dailyRequestsLimit)
	} else {
		maxRps, dailyRequestsLimit = defaults.DefaultMaxRps, defaults.DefaultDailyRequestsLimit
	}

	row, err := s.store.Create(ctx, ownerUserID, req.Name, req.Description, c.Name, c.ChainID,
		maxRps, dailyRequestsLimit)
	if err != nil {
		return Response{}, fmt.Errorf("creating app: %w", err)
	}
	return row.ToResponse(), nil
}

// Get returns an App, scoped to its owner unless ownerUserID is uuid.Nil
// (admin access). Unlike the AdmitByApiKey hot path, this read path doesn't
// touch dailyRequests on its own, so a dormant App can carry yesterday's
// count forward; Get rolls it over first so the owner never sees a stale
// dailyRequests in the dashboard response.
func (s *Service) Get(ctx context.Context, id, ownerUserID uuid.UUID) (Response, error) {
	row, err := s.store.FindOne(ctx, id)
	if err != nil {
		return Response{}, err
	}
	if ownerUserID != uuid.Nil && row.OwnerUserID != ownerUserID {
		return Response{}, pgx.ErrNoRows
	}

	reset, err := s.store.ResetDailyIfNeeded(ctx, row.ID)
	if err != nil {
		return Response{}, fmt.Errorf("rolling over daily counters: %w", err)
	}
	if reset {
		row, err = s.store.FindOne(ctx, id)
		if err != nil {
			return Response{}, err
		}
	}

	return row.ToResponse(), nil
}

// ListByOwner returns all Apps owned by the given user, with any dormant
// App's dailyRequests rolled over to the current calendar day first (see Get).
func (s *Service) ListByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]Response, error) {
	rows, err := s.store.ListByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("listing apps: %w", err)
	}

	items := make([]Response, 0, len(rows))
	for i := range rows {
		reset, err := s.store.ResetDailyIfNeeded(ctx, rows[i].ID)
		if err != nil {
			return nil, fmt.Errorf("rolling over daily counters: %w", err)
		}
		if reset {
			rows[i], err = s.store.FindOne(ctx, rows[i].ID)
			if err != nil {
				return nil, err
			}
		}
		items = append(items, rows[i].ToResponse())
	}
	return items, nil
}

// Update applies a partial update to an App owned by ownerUserID.
func (s *Service) Update(ctx context.Context, id, ownerUserID uuid.UUID, req UpdateRequest) (Response, error) {
	if _, err := s.Get(ctx, id, ownerUserID); err != nil {
		return Response{}, err
	}

	row, err := s.store.Save(ctx, id, req)
	if err != nil {
		return Response{}, fmt.Errorf("updating app: %w", err)
	}
	return row.ToResponse(), nil
}

// Delete permanently removes an App owned by ownerUserID.
func (s *Service) Delete(ctx context.Context, id, ownerUserID uuid.UUID) error {
	if _, err := s.Get(ctx, id, ownerUserID); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
