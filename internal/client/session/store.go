// Package session holds the authenticated client state: tokens, the current
// user's profile and the invalid-session flag.
//
// A Store is the single source of truth for "who is logged in" inside one
// client process. Every mutation is persisted synchronously through the
// injected Storage under StorageKey and is visible to the next read.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillboard/portal/internal/core/domain"
)

// StorageKey is the durable storage key of the session snapshot.
const StorageKey = "session"

const persistTimeout = 5 * time.Second

// Purger drops data cached while a user was authenticated.
type Purger interface {
	Purge()
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence failures.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log.With().Str("component", "session").Logger() }
}

// WithCache registers a cache that Reset purges.
func WithCache(c Purger) Option {
	return func(s *Store) { s.caches = append(s.caches, c) }
}

// Store owns the session state of one client process.
type Store struct {
	mu      sync.RWMutex
	state   domain.Session
	storage Storage
	caches  []Purger
	log     zerolog.Logger
}

// Open builds a Store and rehydrates it from storage. A missing snapshot
// yields an empty session; an unreadable one is discarded and purged.
func Open(ctx context.Context, storage Storage, opts ...Option) (*Store, error) {
	s := &Store{storage: storage, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	data, err := storage.Load(ctx, StorageKey)
	switch {
	case errors.Is(err, ErrNotFound):
		return s, nil
	case err != nil:
		return nil, err
	}

	var snap domain.Session
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn().Err(err).Msg("discarding unreadable session snapshot")
		if err := storage.Delete(ctx, StorageKey); err != nil {
			s.log.Warn().Err(err).Msg("failed to purge unreadable session snapshot")
		}
		return s, nil
	}
	s.state = snap
	return s, nil
}

// SetToken replaces the access token. An empty token clears it.
func (s *Store) SetToken(token string) {
	s.mutate(func(st *domain.Session) { st.Token = token })
}

// SetRefreshToken replaces the refresh token. An empty token clears it.
func (s *Store) SetRefreshToken(token string) {
	s.mutate(func(st *domain.Session) { st.RefreshToken = token })
}

// SetCurrentUser replaces the profile snapshot. Nil clears it.
func (s *Store) SetCurrentUser(p *domain.Profile) {
	var cp *domain.Profile
	if p != nil {
		v := *p
		cp = &v
	}
	s.mutate(func(st *domain.Session) { st.CurrentUser = cp })
}

// SetInvalidSession marks the session stale without discarding it.
func (s *Store) SetInvalidSession(invalid bool) {
	s.mutate(func(st *domain.Session) { st.InvalidSession = invalid })
}

// Establish installs a freshly authenticated session in one write: readers
// never observe the tokens without the profile or the other way around.
// Switching to a different user purges every registered cache.
func (s *Store) Establish(sess domain.Session) {
	sess = sess.Clone()
	sess.InvalidSession = false
	s.mutate(func(st *domain.Session) {
		if userID(st.CurrentUser) != userID(sess.CurrentUser) {
			s.purgeLocked()
		}
		*st = sess
	})
}

// Rotate replaces both tokens after a refresh and clears the invalid flag.
// A non-nil profile replaces the current one in the same write.
func (s *Store) Rotate(token, refreshToken string, profile *domain.Profile) {
	var cp *domain.Profile
	if profile != nil {
		v := *profile
		cp = &v
	}
	s.mutate(func(st *domain.Session) {
		st.Token = token
		st.RefreshToken = refreshToken
		st.InvalidSession = false
		if cp != nil {
			st.CurrentUser = cp
		}
	})
}

func userID(p *domain.Profile) string {
	if p == nil {
		return ""
	}
	return p.ID
}

// Reset returns to the logged-out state: memory cleared, the durable
// snapshot deleted and every registered cache purged. Calling it while
// logged out is harmless.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = domain.Session{}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.storage.Delete(ctx, StorageKey); err != nil {
		s.log.Error().Err(err).Msg("failed to delete session snapshot")
	}
	s.purgeLocked()
}

func (s *Store) purgeLocked() {
	for _, c := range s.caches {
		c.Purge()
	}
}

// CurrentUser returns a copy of the profile, or nil when logged out.
func (s *Store) CurrentUser() *domain.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.CurrentUser == nil {
		return nil
	}
	p := *s.state.CurrentUser
	return &p
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.RefreshToken
}

func (s *Store) InvalidSession() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.InvalidSession
}

// Snapshot returns a copy of the whole session.
func (s *Store) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Store) mutate(fn func(*domain.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	s.persistLocked()
}

func (s *Store) persistLocked() {
	data, err := json.Marshal(s.state)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode session snapshot")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.storage.Save(ctx, StorageKey, data); err != nil {
		s.log.Error().Err(err).Msg("failed to persist session snapshot")
	}
}
