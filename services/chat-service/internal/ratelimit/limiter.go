package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)

// Window names a fixed counting window.
type Window string

const (
	WindowSecond Window = "second"
	WindowDay    Window = "day"
)

// LimitError reports which window was exceeded. It matches ErrRateLimited.
type LimitError struct {
	Window     Window
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited: %s window exceeded", e.Window)
}

func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Checker decides whether a user may perform one more action.
type Checker interface {
	Check(ctx context.Context, userID string) error
}

// Limiter is a per-user fixed-window counter kept in Redis.
type Limiter struct {
	rdb       redis.UniversalClient
	perSecond int64
	perDay    int64
}

func NewLimiter(rdb redis.UniversalClient, perSecond, perDay int) *Limiter {
	return &Limiter{
		rdb:       rdb,
		perSecond: int64(perSecond),
		perDay:    int64(perDay),
	}
}

// Check counts one action for userID in both windows. The per-second window
// is consulted first so a burst does not consume the daily allowance.
func (l *Limiter) Check(ctx context.Context, userID string) error {
	if err := l.hit(ctx, key(userID, WindowSecond), time.Second, l.perSecond, WindowSecond); err != nil {
		return err
	}

	return l.hit(ctx, key(userID, WindowDay), 24*time.Hour, l.perDay, WindowDay)
}

// hit counts one action in a fixed window. The counter and its expiry are set
// in one transaction so a counter can never outlive its window.
func (l *Limiter) hit(ctx context.Context, key string, window time.Duration, limit int64, name Window) error {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if incr.Val() > limit {
		retryAfter := ttl.Val()
		if retryAfter <= 0 {
			retryAfter = window
		}

		return &LimitError{Window: name, RetryAfter: retryAfter}
	}

	return nil
}

func key(userID string, w Window) string {
	return "ratelimit:" + userID + ":" + string(w)
}
