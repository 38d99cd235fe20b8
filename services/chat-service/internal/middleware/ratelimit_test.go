package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/ratelimit"
)

type checkerFunc func(ctx context.Context, userID string) error

func (f checkerFunc) Check(ctx context.Context, userID string) error { return f(ctx, userID) }

func serveRateLimited(checker ratelimit.Checker, withClaims bool) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
	if withClaims {
		req = req.WithContext(WithClaims(req.Context(), UserClaims{UserID: "user-1", DeviceID: "d"}))
	}

	rec := httptest.NewRecorder()
	RateLimit(checker)(next).ServeHTTP(rec, req)

	return rec
}

func TestRateLimit(t *testing.T) {
	allow := checkerFunc(func(_ context.Context, userID string) error {
		assert.Equal(t, "user-1", userID)
		return nil
	})
	assert.Equal(t, http.StatusAccepted, serveRateLimited(allow, true).Code)

	perSecond := checkerFunc(func(context.Context, string) error {
		return &ratelimit.LimitError{Window: ratelimit.WindowSecond, RetryAfter: 300 * time.Millisecond}
	})
	rec := serveRateLimited(perSecond, true)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Too many requests per second")

	perDay := checkerFunc(func(context.Context, string) error {
		return &ratelimit.LimitError{Window: ratelimit.WindowDay, RetryAfter: 2 * time.Hour}
	})
	rec = serveRateLimited(perDay, true)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "7200", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Daily request limit exceeded")

	broken := checkerFunc(func(context.Context, string) error { return errors.New("redis down") })
	assert.Equal(t, http.StatusInternalServerError, serveRateLimited(broken, true).Code)

	assert.Equal(t, http.StatusUnauthorized, serveRateLimited(allow, false).Code)
}
