package audit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nodebridge/rpc-gateway/internal/httpserver"
)

// Handler provides HTTP handlers for the audit log API.
type Handler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewHandler creates an audit log Handler.
func NewHandler(pool *pgxpool.Pool, logger *slog.Logger) *Handler {
	return &Handler{pool: pool, logger: logger}
}

// Routes returns a chi.Router with audit log routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

// record is one row of the audit log as returned to an admin caller.
type record struct {
	ID         uuid.UUID  `json:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	Action     string     `json:"action"`
	Resource   string     `json:"resource"`
	ResourceID *uuid.UUID `json:"resource_id,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// cursorOf builds the keyset cursor for a record, used both to paginate
// the next page and as the (created_at, id) tiebreaker in the WHERE clause.
func cursorOf(rec record) httpserver.Cursor {
	return httpserver.Cursor{CreatedAt: rec.CreatedAt, ID: rec.ID}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseCursorParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// The audit log is append-only and grows without bound, so it's paged by
	// keyset (created_at, id) rather than OFFSET: a deep OFFSET page would
	// force Postgres to scan and discard every row ahead of it.
	var rows pgx.Rows
	if params.After != nil {
		rows, err = h.pool.Query(ctx,
			`SELECT id, user_id, action, resource, resource_id, ip_address, user_agent, created_at
			 FROM audit_log
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			params.After.CreatedAt, params.After.ID, params.Limit+1,
		)
	} else {
		rows, err = h.pool.Query(ctx,
			`SELECT id, user_id, action, resource, resource_id, ip_address, user_agent, created_at
			 FROM audit_log
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			params.Limit+1,
		)
	}
	if err != nil {
		h.logger.Error("listing audit log", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
		return
	}
	defer rows.Close()

	var entries []record
	for rows.Next() {
		var rec record
		var userID, resourceID pgtype.UUID
		var ip *string
		var ua *string
		if err := rows.Scan(&rec.ID, &userID, &rec.Action, &rec.Resource, &resourceID, &ip, &ua, &rec.CreatedAt); err != nil {
			h.logger.Error("scanning audit log row", "error", err)
			httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
			return
		}
		if userID.Valid {
			id := uuid.UUID(userID.Bytes)
			rec.UserID = &id
		}
		if resourceID.Valid {
			id := uuid.UUID(resourceID.Bytes)
			rec.ResourceID = &id
		}
		if ip != nil {
			rec.IPAddress = *ip
		}
		if ua != nil {
			rec.UserAgent = *ua
		}
		entries = append(entries, rec)
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewCursorPage(entries, params.Limit, cursorOf))
}
