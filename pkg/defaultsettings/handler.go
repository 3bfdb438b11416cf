package defaultsettings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nodebridge/rpc-gateway/internal/audit"
	"github.com/nodebridge/rpc-gateway/internal/httpserver"
)

// Handler provides HTTP handlers for the DefaultAppSettings admin API.
type Handler struct {
	logger *slog.Logger
	audit  *audit.Writer
	store  *Store
}

// NewHandler creates a Handler backed by the given global pool.
func NewHandler(logger *slog.Logger, auditWriter *audit.Writer, pool *pgxpool.Pool) *Handler {
	return &Handler{logger: logger, audit: auditWriter, store: NewStore(pool)}
}

// Routes returns a chi.Router with the default-app-settings admin routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleGet)
	r.Put("/", h.handleUpdate)
	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("getting default app settings", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get default app settings")
		return
	}
	httpserver.Respond(w, http.StatusOK, settings)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	settings, err := h.store.Update(r.Context(), req)
	if err != nil {
		h.logger.Error("updating default app settings", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to update default app settings")
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "update", "default_app_settings", uuid.Nil, nil)
	}

	httpserver.Respond(w, http.StatusOK, settings)
}
