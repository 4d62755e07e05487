package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillboard/portal/internal/core/domain"
	"github.com/skillboard/portal/internal/core/ports"
	"github.com/skillboard/portal/pkg/redact"
)

// AuthService implements login, token refresh, logout and account creation.
type AuthService struct {
	users   ports.UserRepository
	tokens  ports.TokenStore
	limiter ports.AttemptLimiter
	audit   ports.AuditSink
	hasher  ports.PasswordHasher
	issuer  *TokenIssuer
	log     zerolog.Logger
	now     func() time.Time

	// dummyHash is verified against when the email is unknown so a miss
	// costs the same as a wrong password.
	dummyHash string
}

func NewAuthService(
	users ports.UserRepository,
	tokens ports.TokenStore,
	limiter ports.AttemptLimiter,
	audit ports.AuditSink,
	hasher ports.PasswordHasher,
	issuer *TokenIssuer,
	log zerolog.Logger,
) *AuthService {
	s := &AuthService{
		users:   users,
		tokens:  tokens,
		limiter: limiter,
		audit:   audit,
		hasher:  hasher,
		issuer:  issuer,
		log:     log.With().Str("component", "auth").Logger(),
		now:     time.Now,
	}
	s.dummyHash = s.newDummyHash()
	return s
}

// fallbackDummyHash is a well-formed bcrypt hash (cost 10) of a value no
// caller knows. It keeps unknown-email logins doing full bcrypt work when a
// fresh dummy hash cannot be generated.
const fallbackDummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func (s *AuthService) newDummyHash() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	h, err := s.hasher.Hash(hex.EncodeToString(b))
	if err != nil {
		s.log.Warn().Err(err).Msg("dummy hash generation failed, using fallback")
		return fallbackDummyHash
	}
	return h
}

// Login verifies credentials and issues a token pair. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	email := domain.NormalizeEmail(in.Email)
	event := domain.LoginEvent{Email: email, IP: in.IP, UserAgent: in.UserAgent}

	res, userID, err := s.login(ctx, email, in.Password)
	event.UserID = userID
	switch {
	case err == nil:
		event.Result = domain.LoginSuccess
	case errors.Is(err, domain.ErrInvalidCredentials):
		event.Result = domain.LoginInvalidCredentials
	case errors.Is(err, domain.ErrRateLimited):
		event.Result = domain.LoginRateLimited
	default:
		event.Result = domain.LoginError
	}
	s.record(event)

	return res, err
}

func (s *AuthService) login(ctx context.Context, email, plaintext string) (*ports.LoginResult, string, error) {
	if email == "" || plaintext == "" {
		return nil, "", domain.ErrInvalidCredentials
	}

	lockedUntil, err := s.limiter.LockedUntil(ctx, email)
	if err != nil {
		s.log.Warn().Err(err).Str("email", redact.Email(email)).Msg("lockout check failed, continuing")
	} else if d := CheckAttempts(lockedUntil, s.now()); d.Locked {
		return nil, "", &domain.RateLimitError{RetryAfter: d.RetryAfter}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, "", fmt.Errorf("login: find user: %w", err)
		}
		_ = s.hasher.Check(plaintext, s.dummyHash)
		s.recordFailure(ctx, email)
		return nil, "", domain.ErrInvalidCredentials
	}

	if err := s.hasher.Check(plaintext, user.PasswordHash); err != nil {
		if errors.Is(err, domain.ErrMalformedHash) {
			s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash is malformed")
		}
		s.recordFailure(ctx, email)
		return nil, user.ID, domain.ErrInvalidCredentials
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to reset login failures")
	}
	s.upgradeHash(ctx, user, plaintext)

	res, err := s.issue(ctx, user)
	if err != nil {
		return nil, user.ID, err
	}

	s.log.Info().Str("user_id", user.ID).Str("type", string(user.Type)).Msg("login succeeded")
	return res, user.ID, nil
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	failures, err := s.limiter.RecordFailure(ctx, email)
	if err != nil {
		s.log.Warn().Err(err).Str("email", redact.Email(email)).Msg("failed to record login failure")
		return
	}
	if until := LockoutAfter(failures, s.now()); until != nil {
		if err := s.limiter.Lock(ctx, email, *until); err != nil {
			s.log.Warn().Err(err).Str("email", redact.Email(email)).Msg("failed to lock account")
			return
		}
		s.log.Warn().Str("email", redact.Email(email)).Int("failures", failures).Time("locked_until", *until).Msg("account locked")
	}
}

func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, plaintext string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	h, err := s.hasher.Hash(plaintext)
	if err != nil {
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, h); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("password rehash not persisted")
	}
}

func (s *AuthService) issue(ctx context.Context, user *domain.User) (*ports.LoginResult, error) {
	profile := user.Profile()

	access, exp, err := s.issuer.Access(profile)
	if err != nil {
		return nil, err
	}
	refresh, hash, err := s.issuer.Refresh()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := domain.RefreshRecord{UserID: user.ID, IssuedAt: now, ExpiresAt: now.Add(s.issuer.RefreshTTL())}
	if err := s.tokens.Save(ctx, hash, rec); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &ports.LoginResult{
		Tokens:  domain.TokenPair{AccessToken: access, RefreshToken: refresh, AccessExpiresAt: exp},
		Profile: profile,
	}, nil
}

func (s *AuthService) record(event domain.LoginEvent) {
	if s.audit == nil {
		return
	}
	event.ID = uuid.NewString()
	event.At = s.now().UTC()
	s.audit.Record(event)
}

// Refresh redeems a refresh token for a new pair. The presented token is
// consumed, so replaying it fails with domain.ErrTokenInvalid.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*ports.LoginResult, error) {
	if refreshToken == "" {
		return nil, domain.ErrTokenInvalid
	}

	rec, err := s.tokens.Consume(ctx, HashRefreshToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if !rec.ExpiresAt.After(s.now()) {
		return nil, domain.ErrTokenExpired
	}

	user, err := s.users.FindByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("refresh: find user: %w", err)
	}

	return s.issue(ctx, user)
}

// Logout revokes a refresh token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, HashRefreshToken(refreshToken)); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Register creates an account with a hashed password.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	userType, err := domain.ParseUserType(in.Type)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	created, err := s.users.Create(ctx, &domain.User{
		Email:        email,
		Name:         in.Name,
		AvatarURL:    in.AvatarURL,
		Type:         userType,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", created.ID).Str("type", string(created.Type)).Msg("user registered")
	return created, nil
}

// Profile returns the public profile of userID.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Profile(), nil
}

// EnsureAdmin creates the bootstrap admin account unless the email is
// already registered.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("ensure admin: %w", err)
	}

	_, err = s.Register(ctx, ports.RegisterInput{
		Email:    email,
		Password: password,
		Name:     name,
		Type:     string(domain.UserTypeAdmin),
	})
	if errors.Is(err, domain.ErrUserExists) {
		return nil
	}
	return err
}
