package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/ratelimit"
	"github.com/vasapolrittideah/chatdesk/shared/utilities"
)

// RateLimit rejects callers that exceed their per-user allowance.
// It must run after Authenticate.
func RateLimit(limiter ratelimit.Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				utilities.WriteError(w, http.StatusUnauthorized, "Access token required")
				return
			}

			err := limiter.Check(r.Context(), claims.UserID)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			var limitErr *ratelimit.LimitError
			if errors.As(err, &limitErr) {
				seconds := int(math.Ceil(limitErr.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))

				message := "Too many requests per second"
				if limitErr.Window == ratelimit.WindowDay {
					message = "Daily request limit exceeded"
				}
				utilities.WriteError(w, http.StatusTooManyRequests, message)
				return
			}

			hlog.FromRequest(r).Error().Err(err).Str("user_id", claims.UserID).Msg("rate limit check failed")
			utilities.WriteError(w, http.StatusInternalServerError, "Internal server error")
		})
	}
}
