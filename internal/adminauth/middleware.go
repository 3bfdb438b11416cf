package adminauth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Middleware returns an HTTP middleware that authenticates the dashboard
// caller via session JWT or OIDC JWT, and stores the resulting Identity in
// the request context.
//
// Authentication precedence:
//  1. Authorization: Bearer <jwt>  →  self-issued session JWT (HMAC)
//  2. Authorization: Bearer <jwt>  →  OIDC JWT, if the session JWT didn't validate
//
// If neither succeeds, the request is rejected with 401.
func Middleware(sessionMgr *SessionManager, oidcAuth *OIDCAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var identity *Identity

			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") || strings.HasPrefix(authHeader, "bearer ") {
				rawToken := strings.TrimPrefix(authHeader, "Bearer ")
				rawToken = strings.TrimPrefix(rawToken, "bearer ")
				rawToken = strings.TrimSpace(rawToken)

				if sessionMgr != nil {
					if claims, err := sessionMgr.ValidateToken(rawToken); err == nil {
						userID, _ := uuid.Parse(claims.UserID)
						identity = &Identity{
							UserID: userID,
							Email:  claims.Email,
							Name:   claims.Subject,
							Role:   claims.Role,
							Method: MethodSession,
						}
						logger.Debug("authenticated via session JWT", "email", claims.Email)
					}
				}

				if identity == nil && oidcAuth != nil {
					claims, err := oidcAuth.Authenticate(r.Context(), authHeader)
					if err != nil {
						logger.Warn("OIDC authentication failed", "error", err)
						respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid token")
						return
					}
					identity = &Identity{
						Email:  claims.Email,
						Name:   claims.Name,
						Role:   claims.Role,
						Method: MethodOIDC,
					}
					logger.Debug("authenticated via OIDC", "email", claims.Email)
				}

				if identity == nil {
					respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid token")
					return
				}
			}

			if identity == nil {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "no valid authentication provided")
				return
			}

			ctx := NewContext(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondErr(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errStr,
		"message": message,
	})
}
