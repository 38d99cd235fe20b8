package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/handler"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/middleware"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/ratelimit"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/repository"
	"github.com/vasapolrittideah/chatdesk/shared/auth"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Logger         *zerolog.Logger
	AuthHandler    *handler.AuthHandler
	ChatHandler    *handler.ChatHandler
	HealthHandler  *handler.HealthHandler
	JWTAuth        auth.JWTAuthenticator
	AccessSecret   string
	Sessions       repository.SessionRepository
	Limiter        ratelimit.Checker
	AllowedOrigins []string
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(d.AllowedOrigins...))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", d.HealthHandler.Liveness)
	r.Get("/readyz", d.HealthHandler.Readiness)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", d.AuthHandler.Register)
		r.Post("/login", d.AuthHandler.Login)
		r.Post("/refresh", d.AuthHandler.Refresh)
		r.Post("/logout", d.AuthHandler.Logout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(d.JWTAuth, d.AccessSecret, d.Sessions))

		r.Get("/me", d.ChatHandler.Me)
		r.With(middleware.RateLimit(d.Limiter)).Post("/messages", d.ChatHandler.SendMessage)
	})

	return r
}
