package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nodebridge/rpc-gateway/internal/adminauth"
	"github.com/nodebridge/rpc-gateway/internal/audit"
	"github.com/nodebridge/rpc-gateway/internal/httpserver"
)

// Handler provides HTTP handlers for the owner-scoped Apps API.
type Handler struct {
	logger  *slog.Logger
	audit   *audit.Writer
	service *Service
}

// NewHandler creates an App Handler backed by the given global pool.
// fallbackMaxRps/fallbackDailyRequests are the DEFAULT_MAX_RPS/
// DEFAULT_DAILY_REQUESTS env values, used only if DefaultAppSettings can't
// be read at provisioning time.
func NewHandler(logger *slog.Logger, auditWriter *audit.Writer, pool *pgxpool.Pool, maxAppsPerUser int, fallbackMaxRps float64, fallbackDailyRequests int64) *Handler {
	return &Handler{
		logger:  logger,
		audit:   auditWriter,
		service: NewService(pool, logger, maxAppsPerUser, fallbackMaxRps, fallbackDailyRequests),
	}
}

// Routes returns a chi.Router with all App routes mounted. Callers must
// apply adminauth.RequireAuth upstream; ownership is enforced per request.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id := adminauth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), id.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrTooManyApps):
			httpserver.RespondError(w, http.StatusConflict, "conflict", "maximum number of apps reached")
		case errors.Is(err, ErrChainUnavailable):
			httpserver.RespondError(w, http.StatusUnprocessableEntity, "chain_unavailable", "chain not found or not enabled")
		default:
			h.logger.Error("creating app", "error", err)
			httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create app")
		}
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"name": resp.Name, "chain": resp.ChainName})
		h.audit.LogFromRequest(r, "create", "app", resp.ID, detail)
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id := adminauth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	items, err := h.service.ListByOwner(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("listing apps", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list apps")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"apps":  items,
		"count": len(items),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	identity := adminauth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	appID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid app ID")
		return
	}

	resp, err := h.service.Get(r.Context(), appID, identity.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "app not found")
			return
		}
		h.logger.Error("getting app", "error", err, "id", appID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get app")
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	identity := adminauth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	appID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid app ID")
		return
	}

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Update(r.Context(), appID, identity.UserID, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "app not found")
			return
		}
		h.logger.Error("updating app", "error", err, "id", appID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to update app")
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "update", "app", appID, nil)
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	identity := adminauth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	appID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid app ID")
		return
	}

	if err := h.service.Delete(r.Context(), appID, identity.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "app not found")
			return
		}
		h.logger.Error("deleting app", "error", err, "id", appID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete app")
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "delete", "app", appID, nil)
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}
