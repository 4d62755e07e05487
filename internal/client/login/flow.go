// Package login drives the credential exchange and writes its outcome to
// the session store.
package login

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/skillboard/portal/internal/client/session"
	"github.com/skillboard/portal/internal/core/domain"
	"github.com/skillboard/portal/internal/core/ports"
)

// Authenticator is the server side of the exchange.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*ports.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*ports.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Credentials is what the user typed.
type Credentials struct {
	Email    string
	Password string
}

// Flow runs login attempts against an Authenticator. When attempts
// overlap only the most recently started one may write the store; older
// responses are dropped whatever order they arrive in.
type Flow struct {
	auth    Authenticator
	store   *session.Store
	log     zerolog.Logger
	seq     atomic.Uint64
	pending atomic.Int64

	// commit serialises the latest-attempt check with the store write.
	commit sync.Mutex
}

func NewFlow(auth Authenticator, store *session.Store, log zerolog.Logger) *Flow {
	return &Flow{
		auth:  auth,
		store: store,
		log:   log.With().Str("component", "login").Logger(),
	}
}

// Pending reports whether any login attempt is in flight.
func (f *Flow) Pending() bool {
	return f.pending.Load() > 0
}

// Login submits creds. On success the session is established in one write
// and returned. On failure the store is left as it was. A response that
// lost the race to a newer attempt yields domain.ErrSuperseded.
func (f *Flow) Login(ctx context.Context, creds Credentials) (domain.Session, error) {
	my := f.seq.Add(1)
	f.pending.Add(1)
	defer f.pending.Add(-1)

	res, err := f.auth.Login(ctx, creds.Email, creds.Password)

	f.commit.Lock()
	defer f.commit.Unlock()
	if f.seq.Load() != my {
		f.log.Debug().Uint64("attempt", my).Msg("dropping superseded login response")
		return domain.Session{}, domain.ErrSuperseded
	}
	if err != nil {
		return domain.Session{}, err
	}
	if res == nil || res.Profile == nil {
		return domain.Session{}, &domain.TransportError{Op: "login", Err: errors.New("response without profile")}
	}

	sess := domain.Session{
		Token:        res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		CurrentUser:  res.Profile,
	}
	f.store.Establish(sess)
	f.log.Info().Str("user_id", res.Profile.ID).Str("type", string(res.Profile.Type)).Msg("logged in")
	return f.store.Snapshot(), nil
}

// Refresh rotates the token pair. A rejected refresh token marks the
// session invalid and returns domain.ErrStaleSession; transport failures
// leave the session untouched. A response that arrives after a newer login
// or a logout yields domain.ErrSuperseded and changes nothing.
func (f *Flow) Refresh(ctx context.Context) error {
	my := f.seq.Load()
	rt := f.store.RefreshToken()
	if rt == "" {
		f.commit.Lock()
		defer f.commit.Unlock()
		if f.seq.Load() != my {
			return domain.ErrSuperseded
		}
		f.store.SetInvalidSession(true)
		return domain.ErrStaleSession
	}

	res, err := f.auth.Refresh(ctx, rt)

	f.commit.Lock()
	defer f.commit.Unlock()
	if f.seq.Load() != my {
		f.log.Debug().Uint64("attempt", my).Msg("dropping superseded refresh response")
		return domain.ErrSuperseded
	}
	switch {
	case errors.Is(err, domain.ErrTokenInvalid), errors.Is(err, domain.ErrTokenExpired):
		f.store.SetInvalidSession(true)
		f.log.Info().Msg("refresh rejected, session marked invalid")
		return fmt.Errorf("%w: %w", domain.ErrStaleSession, err)
	case err != nil:
		return err
	case res == nil:
		return &domain.TransportError{Op: "refresh", Err: errors.New("empty response")}
	}

	f.store.Rotate(res.Tokens.AccessToken, res.Tokens.RefreshToken, res.Profile)
	return nil
}

// Logout revokes the refresh token when possible and always resets the
// session. Any login still in flight is superseded.
func (f *Flow) Logout(ctx context.Context) error {
	f.commit.Lock()
	f.seq.Add(1)
	f.commit.Unlock()

	var err error
	if rt := f.store.RefreshToken(); rt != "" {
		if err = f.auth.Logout(ctx, rt); err != nil {
			f.log.Warn().Err(err).Msg("server side logout failed, clearing local session anyway")
		}
	}
	f.store.Reset()
	return err
}
