package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/repository"
	"github.com/vasapolrittideah/chatdesk/shared/auth"
	"github.com/vasapolrittideah/chatdesk/shared/utilities"
)

type contextKey struct{}

var userClaimsKey = contextKey{}

// UserClaims identifies the caller of a protected request.
type UserClaims struct {
	UserID   string
	DeviceID string
}

// ClaimsFromContext returns the claims attached by Authenticate.
func ClaimsFromContext(ctx context.Context) (UserClaims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(UserClaims)
	return claims, ok
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims UserClaims) context.Context {
	return context.WithValue(ctx, userClaimsKey, claims)
}

// Authenticate admits a request only when its bearer access token verifies
// against secret and is still present in the session store.
func Authenticate(
	jwtAuth auth.JWTAuthenticator,
	secret string,
	sessions repository.SessionRepository,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := utilities.BearerToken(r)
			if !ok {
				utilities.WriteError(w, http.StatusUnauthorized, "Access token required")
				return
			}

			claims, err := jwtAuth.VerifyToken(token, secret)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					utilities.WriteError(w, http.StatusUnauthorized, "Access token expired")
					return
				}

				utilities.WriteError(w, http.StatusUnauthorized, "Invalid access token")
				return
			}

			ownerID, err := sessions.Get(r.Context(), repository.AccessKey(token))
			if err != nil {
				if errors.Is(err, repository.ErrSessionNotFound) {
					utilities.WriteError(w, http.StatusUnauthorized, "Access token expired or revoked")
					return
				}

				hlog.FromRequest(r).Error().Err(err).Msg("failed to look up access token")
				utilities.WriteError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			if ownerID != claims.UserID {
				utilities.WriteError(w, http.StatusUnauthorized, "Invalid access token")
				return
			}

			ctx := WithClaims(r.Context(), UserClaims{
				UserID:   claims.UserID,
				DeviceID: claims.DeviceID,
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
