package adminauth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/nodebridge/rpc-gateway/pkg/user"
)

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for a successful login.
type LoginResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// UserInfo is the public user information returned in auth responses.
type UserInfo struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// AuthConfigResponse tells the frontend which auth methods are available.
type AuthConfigResponse struct {
	OIDCEnabled  bool   `json:"oidc_enabled"`
	OIDCName     string `json:"oidc_name"`
	LocalEnabled bool   `json:"local_enabled"`
}

// LoginHandler handles local email/password login and auth discovery.
type LoginHandler struct {
	sessionMgr  *SessionManager
	users       *user.Store
	logger      *slog.Logger
	oidcEnabled bool
	rateLimiter *RateLimiter
}

// NewLoginHandler creates a new login handler backed by the given global pool.
// rateLimiter may be nil, in which case login attempts are never throttled.
func NewLoginHandler(sm *SessionManager, pool *pgxpool.Pool, logger *slog.Logger, oidcEnabled bool, rateLimiter *RateLimiter) *LoginHandler {
	return &LoginHandler{
		sessionMgr:  sm,
		users:       user.NewStore(pool),
		logger:      logger,
		oidcEnabled: oidcEnabled,
		rateLimiter: rateLimiter,
	}
}

// HandleLogin authenticates a user with email/password and returns a session JWT.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	clientIP := requestIP(r)

	if h.rateLimiter != nil {
		result, err := h.rateLimiter.Check(r.Context(), clientIP)
		if err != nil {
			h.logger.Error("login: rate limit check failed", "error", err)
		} else if !result.Allowed {
			respondErr(w, http.StatusTooManyRequests, "rate_limited", "too many failed login attempts, try again later")
			return
		}
	}

	fail := func() {
		if h.rateLimiter != nil {
			if err := h.rateLimiter.Record(r.Context(), clientIP); err != nil {
				h.logger.Error("login: recording rate limit attempt failed", "error", err)
			}
		}
		respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	if req.Email == "" || req.Password == "" {
		respondErr(w, http.StatusBadRequest, "bad_request", "email and password are required")
		return
	}

	row, err := h.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			h.logger.Error("login: user lookup failed", "error", err)
		}
		fail()
		return
	}

	if row.PasswordHash == "" {
		h.logger.Warn("login: user has no password set", "email", req.Email)
		fail()
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(req.Password)); err != nil {
		fail()
		return
	}

	if h.rateLimiter != nil {
		if err := h.rateLimiter.Reset(r.Context(), clientIP); err != nil {
			h.logger.Warn("login: resetting rate limit failed", "error", err)
		}
	}

	token, err := h.sessionMgr.IssueToken(SessionClaims{
		Subject: row.DisplayName,
		Email:   row.Email,
		Role:    row.Role,
		UserID:  row.ID.String(),
		Method:  MethodSession,
	})
	if err != nil {
		h.logger.Error("login: issuing token", "error", err)
		respondErr(w, http.StatusInternalServerError, "internal", "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		Token: token,
		User: UserInfo{
			ID:          row.ID.String(),
			Email:       row.Email,
			DisplayName: row.DisplayName,
			Role:        row.Role,
		},
	})
}

// HandleAuthConfig returns the available authentication methods.
func (h *LoginHandler) HandleAuthConfig(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, AuthConfigResponse{
		OIDCEnabled:  h.oidcEnabled,
		OIDCName:     "Sign in with SSO",
		LocalEnabled: true,
	})
}

// HandleMe returns the current user's info from a session token.
func (h *LoginHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 8 {
		respondErr(w, http.StatusUnauthorized, "unauthorized", "no token provided")
		return
	}

	token := authHeader[7:] // strip "Bearer "
	claims, err := h.sessionMgr.ValidateToken(token)
	if err != nil {
		respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":           claims.UserID,
		"email":        claims.Email,
		"display_name": claims.Subject,
		"role":         claims.Role,
	})
}

// HandleLogout is a no-op endpoint for future server-side session revocation.
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestIP extracts the caller's IP for rate limiting, preferring
// X-Forwarded-For over RemoteAddr.
func requestIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
