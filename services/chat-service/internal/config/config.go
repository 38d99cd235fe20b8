package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vasapolrittideah/chatdesk/shared/auth"
)

// Config holds the chat service configuration read from the environment.
type Config struct {
	AppEnv         string `env:"APP_ENV"          envDefault:"development"`
	HTTPAddr       string `env:"HTTP_ADDR"        envDefault:":8080"`
	GRPCHealthAddr string `env:"GRPC_HEALTH_ADDR" envDefault:":9090"`
	ServiceName    string `env:"SERVICE_NAME"     envDefault:"chat-service"`
	FrontendURL    string `env:"FRONTEND_URL"     envDefault:"http://localhost:5173"`
	ConsulAddr     string `env:"CONSUL_ADDR"`
	AdvertiseHost  string `env:"ADVERTISE_HOST"   envDefault:"localhost"`

	Log       LogConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Token     TokenConfig
	RateLimit RateLimitConfig
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Pretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI"      envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DATABASE" envDefault:"chatdesk"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"       envDefault:"0"`
}

// TokenConfig holds the two signing profiles.
type TokenConfig struct {
	AccessTokenSecret     string      `env:"JWT_ACCESS_SECRET"`
	RefreshTokenSecret    string      `env:"JWT_REFRESH_SECRET"`
	Issuer                string      `env:"JWT_ISSUER"               envDefault:"chatdesk"`
	AccessTokenExpiresIn  auth.Expiry `env:"ACCESS_TOKEN_EXPIRES_IN"  envDefault:"15m"`
	RefreshTokenExpiresIn auth.Expiry `env:"REFRESH_TOKEN_EXPIRES_IN" envDefault:"7d"`
}

type RateLimitConfig struct {
	PerSecond int `env:"RATE_LIMIT_PER_SECOND" envDefault:"2"`
	PerDay    int `env:"RATE_LIMIT_PER_DAY"    envDefault:"10"`
}

// Load parses and validates the configuration.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AccessTTL returns the access token lifetime.
func (c *TokenConfig) AccessTTL() time.Duration {
	return c.AccessTokenExpiresIn.Duration()
}

// RefreshTTL returns the refresh token lifetime.
func (c *TokenConfig) RefreshTTL() time.Duration {
	return c.RefreshTokenExpiresIn.Duration()
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Token.AccessTokenSecret == "" {
		return errors.New("missing JWT_ACCESS_SECRET environment variable")
	}
	if c.Token.RefreshTokenSecret == "" {
		return errors.New("missing JWT_REFRESH_SECRET environment variable")
	}
	if c.Token.AccessTokenSecret == c.Token.RefreshTokenSecret {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.Token.AccessTTL() <= 0 || c.Token.RefreshTTL() <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.PerDay <= 0 {
		return errors.New("rate limits must be positive")
	}

	return nil
}
