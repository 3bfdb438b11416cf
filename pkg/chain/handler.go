package chain

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nodebridge/rpc-gateway/internal/audit"
	"github.com/nodebridge/rpc-gateway/internal/httpserver"
)

// Handler provides HTTP handlers for the admin Chain Registry API.
type Handler struct {
	logger   *slog.Logger
	audit    *audit.Writer
	service  *Service
	registry *Registry
}

// NewHandler creates a Chain Handler. Changes made through this handler are
// reflected into registry so C5/C7 observe them without a restart.
func NewHandler(logger *slog.Logger, auditWriter *audit.Writer, pool *pgxpool.Pool, registry *Registry) *Handler {
	return &Handler{
		logger:   logger,
		audit:    auditWriter,
		service:  NewService(pool, logger),
		registry: registry,
	}
}

// Routes returns a chi.Router with all Chain Registry admin routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	c, err := h.service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrNameTaken) {
			httpserver.RespondError(w, http.StatusConflict, "conflict", "chain name already registered")
			return
		}
		h.logger.Error("creating chain", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create chain")
		return
	}

	h.registry.Reload(r.Context())

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"name": c.Name})
		id, _ := uuid.Parse(c.ID)
		h.audit.LogFromRequest(r, "create", "chain", id, detail)
	}

	httpserver.Respond(w, http.StatusCreated, c)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	chains, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("listing chains", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list chains")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"chains": chains,
		"count":  len(chains),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid chain ID")
		return
	}

	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "chain not found")
			return
		}
		h.logger.Error("getting chain", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get chain")
		return
	}

	httpserver.Respond(w, http.StatusOK, c)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid chain ID")
		return
	}

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	c, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "chain not found")
			return
		}
		h.logger.Error("updating chain", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to update chain")
		return
	}

	h.registry.Reload(r.Context())

	if h.audit != nil {
		h.audit.LogFromRequest(r, "update", "chain", id, nil)
	}

	httpserver.Respond(w, http.StatusOK, c)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid chain ID")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "chain not found")
			return
		}
		h.logger.Error("deleting chain", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete chain")
		return
	}

	h.registry.Reload(r.Context())

	if h.audit != nil {
		h.audit.LogFromRequest(r, "delete", "chain", id, nil)
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}
