package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"google.golang.org/grpc"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/chat"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/config"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/handler"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/notify"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/ratelimit"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/repository"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/router"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/usecase"
	"github.com/vasapolrittideah/chatdesk/shared/auth"
	"github.com/vasapolrittideah/chatdesk/shared/discovery"
	"github.com/vasapolrittideah/chatdesk/shared/logger"
	"github.com/vasapolrittideah/chatdesk/shared/mailer"
	"github.com/vasapolrittideah/chatdesk/shared/utilities"
	"github.com/vasapolrittideah/chatdesk/shared/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", false).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	pingMongo := func(ctx context.Context) error {
		return mongoClient.Ping(ctx, readpref.Primary())
	}
	if err := withTimeout(ctx, 10*time.Second, pingMongo); err != nil {
		log.Fatal().Err(err).Msg("failed to ping MongoDB")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	sessionRepo := repository.NewSessionRedisRepository(rdb)
	if err := withTimeout(ctx, 5*time.Second, sessionRepo.Ping); err != nil {
		log.Fatal().Err(err).Msg("failed to ping Redis")
	}

	userRepo := repository.NewUserMongoRepository(ctx, log, mongoClient.Database(cfg.Mongo.Database))
	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Issuer, cfg.Token.Issuer)

	var authOpts []usecase.AuthOption
	if m := mailer.NewMailer(log); m != nil {
		authOpts = append(authOpts, usecase.WithSignInNotifier(notify.NewSignInMailer(m)))
	}
	authUsecase := usecase.NewAuthUsecase(userRepo, sessionRepo, jwtAuth, &cfg.Token, log, authOpts...)

	v, err := validation.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create validator")
	}

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: router.New(router.Deps{
			Logger:      log,
			AuthHandler: handler.NewAuthHandler(authUsecase, v, handler.NewCookieConfig(cfg.IsProduction())),
			ChatHandler: handler.NewChatHandler(chat.NewLogSender(log), v),
			HealthHandler: handler.NewHealthHandler(map[string]handler.ReadinessCheck{
				"mongo": pingMongo,
				"redis": sessionRepo.Ping,
			}),
			JWTAuth:        jwtAuth,
			AccessSecret:   cfg.Token.AccessTokenSecret,
			Sessions:       sessionRepo,
			Limiter:        ratelimit.NewLimiter(rdb, cfg.RateLimit.PerSecond, cfg.RateLimit.PerDay),
			AllowedOrigins: []string{cfg.FrontendURL},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := utilities.RegisterHealthServer(grpcServer, cfg.ServiceName)

	lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.GRPCHealthAddr).Msg("failed to listen for gRPC health")
	}

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC health server stopped")
		}
	}()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	deregister := registerWithConsul(cfg, log)

	<-ctx.Done()
	log.Info().Msg("shutting down")

	healthServer.Shutdown()
	deregister()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down HTTP server")
	}
	grpcServer.GracefulStop()

	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close Redis client")
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to disconnect MongoDB")
	}
}

func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	return fn(ctx)
}

// registerWithConsul registers the instance when CONSUL_ADDR is set and
// returns the matching deregistration.
func registerWithConsul(cfg *config.Config, log *zerolog.Logger) func() {
	noop := func() {}
	if cfg.ConsulAddr == "" {
		return noop
	}

	registry, err := discovery.NewConsulRegistry(cfg.ConsulAddr)
	if err != nil {
		log.Error().Err(err).Msg("failed to create Consul registry")
		return noop
	}

	reg, err := discovery.NewRegistration(
		cfg.ServiceName,
		advertised(cfg.HTTPAddr, cfg.AdvertiseHost),
		advertised(cfg.GRPCHealthAddr, cfg.AdvertiseHost),
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to build Consul registration")
		return noop
	}

	if err := registry.Register(reg); err != nil {
		log.Error().Err(err).Msg("failed to register with Consul")
		return noop
	}
	log.Info().Str("service_id", reg.ID).Msg("registered with Consul")

	return func() {
		if err := registry.Deregister(reg.ID); err != nil {
			log.Error().Err(err).Msg("failed to deregister from Consul")
		}
	}
}

// advertised replaces an empty or wildcard listen host with host.
func advertised(listenAddr, host string) string {
	h, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return listenAddr
	}
	if h == "" || h == "0.0.0.0" || h == "::" {
		h = host
	}

	return net.JoinHostPort(h, port)
}
