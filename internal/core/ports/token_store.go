package ports

import (
	"context"
	"time"

	"github.com/skillboard/portal/internal/core/domain"
)

// TokenStore keeps outstanding refresh tokens, keyed by token hash.
type TokenStore interface {
	Save(ctx context.Context, hash string, rec domain.RefreshRecord) error
	// Consume atomically fetches and deletes the record so a refresh token
	// can be redeemed at most once. Returns domain.ErrTokenInvalid when absent.
	Consume(ctx context.Context, hash string) (*domain.RefreshRecord, error)
	// Revoke deletes the record; absent records are not an error.
	Revoke(ctx context.Context, hash string) error
}

// AttemptLimiter tracks failed logins per email.
type AttemptLimiter interface {
	// LockedUntil returns the lockout expiry, or nil when not locked.
	LockedUntil(ctx context.Context, email string) (*time.Time, error)
	// RecordFailure increments the failure counter and returns the new count.
	RecordFailure(ctx context.Context, email string) (int, error)
	Lock(ctx context.Context, email string, until time.Time) error
	Reset(ctx context.Context, email string) error
}
