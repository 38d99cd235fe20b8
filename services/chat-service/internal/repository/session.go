package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrStoreUnavailable = errors.New("session store unavailable")
)

const (
	accessKeyPrefix  = "access:"
	refreshKeyPrefix = "refresh:"
)

// AccessKey is the session store key for a live access token.
func AccessKey(token string) string { return accessKeyPrefix + token }

// RefreshKey is the session store key for a live refresh token.
func RefreshKey(token string) string { return refreshKeyPrefix + token }

// SessionRepository maps live token keys to their owning user id. Every
// operation is a single Redis command; nothing spans keys atomically.
type SessionRepository interface {
	Put(ctx context.Context, key, userID string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

type sessionRedisRepository struct {
	rdb redis.UniversalClient
}

func NewSessionRedisRepository(rdb redis.UniversalClient) SessionRepository {
	return &sessionRedisRepository{rdb: rdb}
}

func (r *sessionRedisRepository) Put(ctx context.Context, key, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid session ttl %s for %s", ttl, keyPrefix(key))
	}

	if err := r.rdb.Set(ctx, key, userID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

func (r *sessionRedisRepository) Get(ctx context.Context, key string) (string, error) {
	userID, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}

		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return userID, nil
}

func (r *sessionRedisRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

func (r *sessionRedisRepository) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

func keyPrefix(key string) string {
	for _, p := range []string{accessKeyPrefix, refreshKeyPrefix} {
		if strings.HasPrefix(key, p) {
			return p + "*"
		}
	}

	return "key"
}
