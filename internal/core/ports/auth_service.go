package ports

import (
	"context"

	"github.com/skillboard/portal/internal/core/domain"
)

// LoginInput carries a login attempt from the transport layer.
type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Email     string
	Password  string
	Name      string
	AvatarURL string
	Type      string
}

// LoginResult is returned by Login and Refresh.
type LoginResult struct {
	Tokens  domain.TokenPair
	Profile *domain.Profile
}

type AuthService interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Profile(ctx context.Context, userID string) (*domain.Profile, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Check(plaintext, hashed string) error
	NeedsRehash(hashed string) bool
}
