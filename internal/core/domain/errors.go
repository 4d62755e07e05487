package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrMalformedHash      = errors.New("malformed password hash")
	ErrTransport          = errors.New("transport failure")
	ErrStaleSession       = errors.New("session is no longer valid")
	ErrRateLimited        = errors.New("too many login attempts")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrForbidden          = errors.New("access forbidden")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidUserType    = errors.New("invalid user type")
	ErrSuperseded         = errors.New("superseded by a newer login attempt")
	ErrUnknownRoute       = errors.New("unknown route")
)

// TransportError reports a failed round trip to the authentication
// boundary. It matches ErrTransport and is always safe to retry.
type TransportError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: server responded %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// Temporary reports that the caller may retry without new input.
func (e *TransportError) Temporary() bool { return true }

// RateLimitError is returned while an account is locked out.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v: retry after %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
