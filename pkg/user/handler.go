package user

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nodebridge/rpc-gateway/internal/httpserver"
)

// auditLogger is the part of *audit.Writer this package uses. Depending on
// it instead of internal/audit keeps pkg/user out of the import cycle
// internal/adminauth -> pkg/user -> internal/audit -> internal/adminauth.
type auditLogger interface {
	LogFromRequest(r *http.Request, action, resource string, resourceID uuid.UUID, detail json.RawMessage)
}

// Handler provides HTTP handlers for user registration.
type Handler struct {
	logger  *slog.Logger
	audit   auditLogger
	service *Service
}

// NewHandler creates a user Handler backed by the given global pool.
func NewHandler(logger *slog.Logger, audit auditLogger, pool *pgxpool.Pool) *Handler {
	return &Handler{
		logger:  logger,
		audit:   audit,
		service: NewService(pool, logger),
	}
}

// Routes returns a chi.Router with the registration route mounted.
// Login lives in internal/adminauth since it issues the session JWT.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleRegister)
	return r
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			httpserver.RespondError(w, http.StatusConflict, "conflict", "email already registered")
			return
		}
		h.logger.Error("registering user", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to register user")
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"email": resp.Email})
		h.audit.LogFromRequest(r, "create", "user", resp.ID, detail)
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}
