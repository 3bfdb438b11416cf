package chain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const chainColumns = `id, name, chain_id, enabled, admin_notes, execution_urls, consensus_urls, prometheus_urls, created_at, updated_at`

// Store provides database operations for Chain records, backed by the
// global connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a chain Store backed by the given global pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanChain(row pgx.Row) (Chain, error) {
	var c Chain
	var id uuid.UUID
	err := row.Scan(
		&id, &c.Name, &c.ChainID, &c.Enabled, &c.AdminNotes,
		&c.ExecutionURLs, &c.ConsensusURLs, &c.PrometheusURLs,
		&c.CreatedAt, &c.UpdatedAt,
	)
	c.ID = id.String()
	return c, err
}

// Create inserts a new Chain record.
func (s *Store) Create(ctx context.Context, req CreateRequest) (Chain, error) {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	query := `INSERT INTO chains (name, chain_id, enabled, admin_notes, execution_urls, consensus_urls, prometheus_urls)
	VALUES (lower($1), $2, $3, $4, $5, $6, $7)
	RETURNING ` + chainColumns

	row := s.pool.QueryRow(ctx, query,
		req.Name, req.ChainID, enabled, req.AdminNotes,
		req.ExecutionURLs, req.ConsensusURLs, req.PrometheusURLs,
	)
	return scanChain(row)
}

// Get returns a single Chain by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Chain, error) {
	query := `SELECT ` + chainColumns + ` FROM chains WHERE id = $1`
	return scanChain(s.pool.QueryRow(ctx, query, id))
}

// GetByName returns a single Chain by case-insensitive name.
func (s *Store) GetByName(ctx context.Context, name string) (Chain, error) {
	query := `SELECT ` + chainColumns + ` FROM chains WHERE name = lower($1)`
	return scanChain(s.pool.QueryRow(ctx, query, name))
}

// List returns all Chain records ordered by name.
func (s *Store) List(ctx context.Context) ([]Chain, error) {
	query := `SELECT ` + chainColumns + ` FROM chains ORDER BY name`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing chains: %w", err)
	}
	defer rows.Close()

	var out []Chain
	for rows.Next() {
		c, err := scanChain(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chain row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update applies a partial update to a Chain record and returns the updated row.
func (s *Store) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Chain, error) {
	query := `UPDATE chains SET
		enabled = COALESCE($2, enabled),
		admin_notes = COALESCE($3, admin_notes),
		execution_urls = COALESCE($4, execution_urls),
		consensus_urls = COALESCE($5, consensus_urls),
		prometheus_urls = COALESCE($6, prometheus_urls),
		updated_at = now()
	WHERE id = $1
	RETURNING ` + chainColumns

	row := s.pool.QueryRow(ctx, query,
		id, req.Enabled, req.AdminNotes, req.ExecutionURLs, req.ConsensusURLs, req.PrometheusURLs,
	)
	return scanChain(row)
}

// Delete permanently removes a Chain record.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting chain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
