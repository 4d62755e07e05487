package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter counts failed logins per email in Redis.
// Key format: auth:fail:<email> holds the failure count for the window,
// auth:lock:<email> holds the lockout expiry in unix milliseconds.
type AttemptLimiter struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

// NewAttemptLimiter remembers failures for window after the first one.
func NewAttemptLimiter(client *redis.Client, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{client: client, window: window, now: time.Now}
}

func (l *AttemptLimiter) LockedUntil(ctx context.Context, email string) (*time.Time, error) {
	v, err := l.client.Get(ctx, lockKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lockout check: %w", err)
	}
	until, err := parseLock(v)
	if err != nil {
		return nil, err
	}
	return &until, nil
}

// RecordFailure increments the counter. The window starts at the first
// failure and is not extended by later ones.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, email string) (int, error) {
	key := failKey(email)
	n, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("record failure: %w", err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return int(n), fmt.Errorf("set failure window: %w", err)
		}
	}
	return int(n), nil
}

func (l *AttemptLimiter) Lock(ctx context.Context, email string, until time.Time) error {
	ttl := until.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, lockKey(email), formatLock(until), ttl)
		p.Del(ctx, failKey(email))
		return nil
	})
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	return nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, email string) error {
	if err := l.client.Del(ctx, failKey(email), lockKey(email)).Err(); err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	return nil
}

func formatLock(until time.Time) string {
	return strconv.FormatInt(until.UnixMilli(), 10)
}

func parseLock(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("lockout value %q: %w", v, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func failKey(email string) string { return "auth:fail:" + email }
func lockKey(email string) string { return "auth:lock:" + email }
