// Package testserver runs the full chat-service HTTP stack in-process for tests.
package testserver

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/chat"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/config"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/handler"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/ratelimit"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/repository"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/repository/repositorytest"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/router"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/usecase"
	"github.com/vasapolrittideah/chatdesk/shared/auth"
	"github.com/vasapolrittideah/chatdesk/shared/validation"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

// Server is a running chat service backed by miniredis and in-memory users.
type Server struct {
	*httptest.Server

	Redis    *miniredis.Miniredis
	Users    *repositorytest.UserRepository
	Sessions repository.SessionRepository

	mu  sync.Mutex
	now time.Time

	refreshCalls atomic.Int64
}

// Options tune the server under test.
type Options struct {
	PerSecond int
	PerDay    int
}

func New(t *testing.T, opts Options) *Server {
	t.Helper()

	if opts.PerSecond == 0 {
		opts.PerSecond = 1000
	}
	if opts.PerDay == 0 {
		opts.PerDay = 1000
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := &Server{
		Redis:    mr,
		Users:    repositorytest.NewUserRepository(),
		Sessions: repository.NewSessionRedisRepository(rdb),
		now:      time.Now(),
	}

	tokenCfg := &config.TokenConfig{
		AccessTokenSecret:     "test-access-secret",
		RefreshTokenSecret:    "test-refresh-secret",
		Issuer:                "chatdesk",
		AccessTokenExpiresIn:  auth.Expiry(AccessTTL),
		RefreshTokenExpiresIn: auth.Expiry(RefreshTTL),
	}

	logger := zerolog.Nop()
	jwtAuth := auth.NewJWTAuthenticator(tokenCfg.Issuer, tokenCfg.Issuer, auth.WithClock(s.Now))

	v, err := validation.New()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	authUsecase := usecase.NewAuthUsecase(s.Users, s.Sessions, jwtAuth, tokenCfg, &logger)

	h := router.New(router.Deps{
		Logger:        &logger,
		AuthHandler:   handler.NewAuthHandler(authUsecase, v, handler.NewCookieConfig(false)),
		ChatHandler:   handler.NewChatHandler(chat.NewLogSender(&logger), v),
		HealthHandler: handler.NewHealthHandler(map[string]handler.ReadinessCheck{"redis": s.Sessions.Ping}),
		JWTAuth:       jwtAuth,
		AccessSecret:  tokenCfg.AccessTokenSecret,
		Sessions:      s.Sessions,
		Limiter:       ratelimit.NewLimiter(rdb, opts.PerSecond, opts.PerDay),
	})

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			s.refreshCalls.Add(1)
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)

	return s
}

// Now is the clock tokens are issued and verified against.
func (s *Server) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.now
}

// Advance moves token time and Redis TTLs forward together.
func (s *Server) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()

	s.Redis.FastForward(d)
}

// RefreshCalls is the number of requests that reached /auth/refresh.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}
