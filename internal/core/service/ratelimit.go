package service

import "time"

const (
	// LockoutThreshold is the number of failures inside FailureWindow that
	// locks an account.
	LockoutThreshold = 5
	// FailureWindow bounds how long failures are remembered.
	FailureWindow = 15 * time.Minute
	// LockoutDuration is the time a locked account stays locked.
	LockoutDuration = 15 * time.Minute
)

// AttemptDecision is the outcome of evaluating the failure state of an email.
type AttemptDecision struct {
	Locked     bool
	RetryAfter time.Duration
}

// CheckAttempts evaluates the lockout state at now.
func CheckAttempts(lockedUntil *time.Time, now time.Time) AttemptDecision {
	if lockedUntil == nil || !lockedUntil.After(now) {
		return AttemptDecision{}
	}
	return AttemptDecision{Locked: true, RetryAfter: lockedUntil.Sub(now)}
}

// LockoutAfter returns the lockout expiry for a failure count, or nil when
// the threshold has not been reached.
func LockoutAfter(failures int, now time.Time) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	until := now.Add(LockoutDuration)
	return &until
}
