// Package password hashes and verifies account passwords with bcrypt.
//
// Hashes are modular-crypt strings ($2a$<cost>$<salt+digest>) that embed the
// algorithm version, cost and salt, so any hash produced here stays
// verifiable after restarts and cost changes.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/skillboard/portal/internal/core/domain"
)

// Cost is the bcrypt work factor for new hashes.
const Cost = 10

// bcrypt only reads the first 72 bytes of a password.
const maxPasswordBytes = 72

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// Hasher hashes with a fixed cost. The zero value uses Cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher for the given cost. Costs outside bcrypt's
// accepted range fall back to Cost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = Cost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) workFactor() int {
	if h == nil || h.cost == 0 {
		return Cost
	}
	return h.cost
}

// Hash returns a freshly salted bcrypt hash of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.workFactor())
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(out), nil
}

// Check returns nil when plaintext matches hashed, ErrInvalidCredentials on
// a mismatch and ErrMalformedHash when hashed is not a bcrypt hash.
func (h *Hasher) Check(plaintext, hashed string) error {
	if _, err := bcrypt.Cost([]byte(hashed)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedHash, err)
	}
	if plaintext == "" || len(plaintext) > maxPasswordBytes {
		return domain.ErrInvalidCredentials
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return domain.ErrInvalidCredentials
	default:
		return fmt.Errorf("%w: %v", domain.ErrMalformedHash, err)
	}
}

// Verify reports whether plaintext matches hashed. It never fails open.
func (h *Hasher) Verify(plaintext, hashed string) bool {
	return h.Check(plaintext, hashed) == nil
}

// NeedsRehash reports whether hashed was produced with a different cost.
// Malformed hashes report false; they cannot be upgraded without the
// plaintext matching first.
func (h *Hasher) NeedsRehash(hashed string) bool {
	cost, err := bcrypt.Cost([]byte(hashed))
	if err != nil {
		return false
	}
	return cost != h.workFactor()
}

var std = &Hasher{}

// Hash hashes plaintext with Cost.
func Hash(plaintext string) (string, error) { return std.Hash(plaintext) }

// Verify reports whether plaintext matches hashed.
func Verify(plaintext, hashed string) bool { return std.Verify(plaintext, hashed) }

// Check is the typed form of Verify.
func Check(plaintext, hashed string) error { return std.Check(plaintext, hashed) }
