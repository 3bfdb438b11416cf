// Package admission implements the Admission Middleware (C3): the gate
// every proxied RPC request must clear before reaching the rate limiter and
// reverse proxy.
package admission

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nodebridge/rpc-gateway/internal/httpserver"
	"github.com/nodebridge/rpc-gateway/internal/telemetry"
	"github.com/nodebridge/rpc-gateway/pkg/app"
)

// Middleware extracts the API key from the path, admits it atomically
// against the Store, enforces the daily limit and chain match, and attaches
// the resolved App to the request context.
//
// It must be mounted on routes carrying {chain} and {key} URL parameters
// (the gateway's /{chain}/{section}/{key}/* data-plane routes).
func Middleware(store *app.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			chainParam := chi.URLParam(r, "chain")
			keyParam := chi.URLParam(r, "key")

			if keyParam == "" {
				httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "API key is required")
				return
			}

			apiKey, err := uuid.Parse(keyParam)
			if err != nil {
				httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "API key must be a valid UUID")
				return
			}

			result, err := store.AdmitByApiKey(r.Context(), apiKey)
			if err != nil {
				logger.Error("admitting api key", "error", err)
				httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to validate API key")
				return
			}
			if !result.Admitted {
				httpserver.RespondError(w, http.StatusForbidden, "forbidden", "invalid or inactive API key")
				return
			}

			// AdmitByApiKey already rolled dailyRequests over to the new
			// calendar day (if needed) and incremented it atomically, so
			// resolved reflects the accurate post-reset, post-increment
			// count here — no separate reset call or re-read required.
			resolved := result.App

			if resolved.DailyRequests > resolved.DailyRequestsLimit {
				httpserver.Respond(w, http.StatusTooManyRequests, httpserver.ErrorResponse{
					Error:   "rate_limited",
					Message: "Daily request limit exceeded",
				})
				return
			}

			if !strings.EqualFold(resolved.ChainName, chainParam) {
				httpserver.Respond(w, http.StatusForbidden, httpserver.ErrorResponse{
					Error:         "forbidden",
					Message:       "API key is not valid for this chain",
					ExpectedChain: resolved.ChainName,
				})
				return
			}

			if labels := telemetry.RequestLabelsFromContext(r.Context()); labels != nil {
				labels.UserID = resolved.OwnerUserID.String()
				labels.APIKey = resolved.APIKey.String()
			}

			ctx := NewContext(r.Context(), resolved)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
