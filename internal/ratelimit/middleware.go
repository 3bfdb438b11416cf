package ratelimit

import (
	"net/http"

	"github.com/nodebridge/rpc-gateway/internal/admission"
	"github.com/nodebridge/rpc-gateway/internal/httpserver"
	"github.com/nodebridge/rpc-gateway/internal/telemetry"
)

// deniedResponse is the 429 body shape mandated for the token-bucket
// limiter. It differs from httpserver.ErrorResponse because it must report
// the caller's limit, remaining tokens, and a retry-after hint.
type deniedResponse struct {
	Error      string  `json:"error"`
	Limit      float64 `json:"limit"`
	Remaining  float64 `json:"remaining"`
	RetryAfter float64 `json:"retryAfter"`
}

// Middleware enforces the per-key token bucket. It must run after the
// admission middleware (C3), which resolves the App and attaches it to the
// context, and before the reverse proxy (C5).
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resolved, ok := admission.FromContext(r.Context())
			if !ok {
				httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "rate limiter ran without an admitted app")
				return
			}

			userID := resolved.OwnerUserID.String()
			apiKey := resolved.APIKey.String()

			res := l.Allow(apiKey, resolved.MaxRps)
			SetHeaders(w, res)
			telemetry.GatewayUserDailyRequests.WithLabelValues(userID, apiKey).Set(float64(resolved.DailyRequests))

			if !res.Allowed {
				telemetry.GatewayRateLimitHitsTotal.WithLabelValues(userID, apiKey).Inc()
				httpserver.Respond(w, http.StatusTooManyRequests, deniedResponse{
					Error:      "Rate limit exceeded",
					Limit:      res.Limit,
					Remaining:  res.Remaining,
					RetryAfter: res.RetryAfter.Seconds(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
