package login

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillboard/portal/internal/client/session"
	"github.com/skillboard/portal/internal/core/domain"
	"github.com/skillboard/portal/internal/core/ports"
)

type reply struct {
	res *ports.LoginResult
	err error
}

// stubAuth answers each Login with whatever is sent on the channel
// registered for that email, so tests decide the arrival order.
type stubAuth struct {
	replies    map[string]chan reply
	refreshRes *ports.LoginResult
	refreshErr error
	// refreshGate, when set, holds Refresh until a reply is sent on it.
	refreshGate    chan reply
	refreshStarted chan struct{}
	logoutErr  error
	logouts    []string
}

func (s *stubAuth) Login(ctx context.Context, email, _ string) (*ports.LoginResult, error) {
	select {
	case r := <-s.replies[email]:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *stubAuth) Refresh(ctx context.Context, _ string) (*ports.LoginResult, error) {
	if s.refreshGate == nil {
		return s.refreshRes, s.refreshErr
	}
	close(s.refreshStarted)
	select {
	case r := <-s.refreshGate:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *stubAuth) Logout(_ context.Context, rt string) error {
	s.logouts = append(s.logouts, rt)
	return s.logoutErr
}

func result(id string, t domain.UserType) *ports.LoginResult {
	return &ports.LoginResult{
		Tokens:  domain.TokenPair{AccessToken: "access-" + id, RefreshToken: "refresh-" + id},
		Profile: &domain.Profile{ID: id, Type: t},
	}
}

func newFlow(t *testing.T, auth *stubAuth) (*Flow, *session.Store) {
	t.Helper()
	store, err := session.Open(context.Background(), session.NewMemoryStorage())
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	return NewFlow(auth, store, zerolog.Nop()), store
}

func TestFlow_LoginSuccess(t *testing.T) {
	auth := &stubAuth{replies: map[string]chan reply{"alice@example.com": make(chan reply, 1)}}
	auth.replies["alice@example.com"] <- reply{res: result("1", domain.UserTypeEmployee)}
	flow, store := newFlow(t, auth)

	sess, err := flow.Login(context.Background(), Credentials{Email: "alice@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token != "access-1" || sess.RefreshToken != "refresh-1" || sess.CurrentUser.ID != "1" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if store.Token() != "access-1" || store.CurrentUser() == nil {
		t.Fatalf("store not established: %+v", store.Snapshot())
	}
	if flow.Pending() {
		t.Fatalf("no attempt should be pending")
	}
}

func TestFlow_FailureLeavesStoreUntouched(t *testing.T) {
	auth := &stubAuth{replies: map[string]chan reply{"a@b.c": make(chan reply, 2)}}
	flow, store := newFlow(t, auth)
	store.Establish(domain.Session{Token: "old", RefreshToken: "old-r", CurrentUser: &domain.Profile{ID: "0"}})

	for _, want := range []error{domain.ErrInvalidCredentials, &domain.TransportError{Op: "login", Err: errors.New("boom")}} {
		auth.replies["a@b.c"] <- reply{err: want}
		_, err := flow.Login(context.Background(), Credentials{Email: "a@b.c", Password: "x"})
		if !errors.Is(err, want) {
			t.Fatalf("Login error = %v, want %v", err, want)
		}
		if store.Token() != "old" || store.CurrentUser().ID != "0" {
			t.Fatalf("failed login changed the store: %+v", store.Snapshot())
		}
	}
}

func TestFlow_LatestAttemptWins(t *testing.T) {
	auth := &stubAuth{replies: map[string]chan reply{
		"first@example.com":  make(chan reply),
		"second@example.com": make(chan reply),
	}}
	flow, store := newFlow(t, auth)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		_, err := flow.Login(ctx, Credentials{Email: "first@example.com", Password: "x"})
		firstDone <- err
	}()
	waitFor(t, func() bool { return flow.seq.Load() == 1 })

	secondDone := make(chan error, 1)
	go func() {
		_, err := flow.Login(ctx, Credentials{Email: "second@example.com", Password: "x"})
		secondDone <- err
	}()
	waitFor(t, func() bool { return flow.seq.Load() == 2 })
	if !flow.Pending() {
		t.Fatalf("expected attempts in flight")
	}

	// The newer attempt answers first, then the older one.
	auth.replies["second@example.com"] <- reply{res: result("2", domain.UserTypeAdmin)}
	if err := <-secondDone; err != nil {
		t.Fatalf("second login: %v", err)
	}
	auth.replies["first@example.com"] <- reply{res: result("1", domain.UserTypeEmployee)}
	if err := <-firstDone; !errors.Is(err, domain.ErrSuperseded) {
		t.Fatalf("first login: expected ErrSuperseded, got %v", err)
	}

	if u := store.CurrentUser(); u == nil || u.ID != "2" || store.Token() != "access-2" {
		t.Fatalf("store must hold the latest attempt, got %+v", store.Snapshot())
	}
	if flow.Pending() {
		t.Fatalf("no attempt should be pending")
	}
}

func TestFlow_OlderFailureDoesNotMaskNewerSuccess(t *testing.T) {
	auth := &stubAuth{replies: map[string]chan reply{
		"first@example.com":  make(chan reply),
		"second@example.com": make(chan reply, 1),
	}}
	flow, store := newFlow(t, auth)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		_, err := flow.Login(ctx, Credentials{Email: "first@example.com", Password: "x"})
		firstDone <- err
	}()
	waitFor(t, func() bool { return flow.seq.Load() == 1 })

	auth.replies["second@example.com"] <- reply{res: result("2", domain.UserTypeEmployee)}
	if _, err := flow.Login(ctx, Credentials{Email: "second@example.com", Password: "x"}); err != nil {
		t.Fatalf("second login: %v", err)
	}

	auth.replies["first@example.com"] <- reply{err: domain.ErrInvalidCredentials}
	if err := <-firstDone; !errors.Is(err, domain.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if store.CurrentUser().ID != "2" {
		t.Fatalf("stale failure touched the store")
	}
}

func TestFlow_RefreshRotates(t *testing.T) {
	auth := &stubAuth{refreshRes: result("1b", domain.UserTypeEmployee)}
	flow, store := newFlow(t, auth)
	store.Establish(domain.Session{Token: "a", RefreshToken: "r", CurrentUser: &domain.Profile{ID: "1b"}})

	if err := flow.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if store.Token() != "access-1b" || store.RefreshToken() != "refresh-1b" || store.InvalidSession() {
		t.Fatalf("unexpected session %+v", store.Snapshot())
	}
}

func TestFlow_RefreshUpdatesProfileWithTokens(t *testing.T) {
	res := result("1", domain.UserTypeAdmin)
	auth := &stubAuth{refreshRes: res}
	flow, store := newFlow(t, auth)
	store.Establish(domain.Session{Token: "a", RefreshToken: "r", CurrentUser: &domain.Profile{ID: "1", Type: domain.UserTypeEmployee}})

	if err := flow.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	got := store.Snapshot()
	if got.Token != "access-1" || got.CurrentUser == nil || got.CurrentUser.Type != domain.UserTypeAdmin {
		t.Fatalf("unexpected session %+v", got)
	}
}

// startRefresh runs flow.Refresh in the background and returns once the
// request has reached the server.
func startRefresh(t *testing.T, flow *Flow, auth *stubAuth) <-chan error {
	t.Helper()
	auth.refreshGate = make(chan reply, 1)
	auth.refreshStarted = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- flow.Refresh(context.Background()) }()
	select {
	case <-auth.refreshStarted:
	case <-time.After(2 * time.Second):
		t.Fatalf("refresh never reached the server")
	}
	return done
}

func TestFlow_RefreshLandingAfterLogoutIsDropped(t *testing.T) {
	storage := session.NewMemoryStorage()
	store, err := session.Open(context.Background(), storage)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	auth := &stubAuth{}
	flow := NewFlow(auth, store, zerolog.Nop())
	store.Establish(domain.Session{Token: "a1", RefreshToken: "r1", CurrentUser: &domain.Profile{ID: "1"}})

	done := startRefresh(t, flow, auth)
	if err := flow.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	auth.refreshGate <- reply{res: result("1", domain.UserTypeEmployee)}

	if err := <-done; !errors.Is(err, domain.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if store.Snapshot() != (domain.Session{}) {
		t.Fatalf("late refresh brought the session back: %+v", store.Snapshot())
	}
	if storage.Has(session.StorageKey) {
		t.Fatalf("late refresh rewrote the durable snapshot")
	}
}

func TestFlow_RefreshLandingAfterNewLoginIsDropped(t *testing.T) {
	auth := &stubAuth{replies: map[string]chan reply{"bob@example.com": make(chan reply, 1)}}
	flow, store := newFlow(t, auth)
	store.Establish(domain.Session{Token: "alice-a1", RefreshToken: "alice-r1", CurrentUser: &domain.Profile{ID: "alice"}})

	done := startRefresh(t, flow, auth)
	auth.replies["bob@example.com"] <- reply{res: result("bob", domain.UserTypeAdmin)}
	if _, err := flow.Login(context.Background(), Credentials{Email: "bob@example.com", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	auth.refreshGate <- reply{res: &ports.LoginResult{
		Tokens:  domain.TokenPair{AccessToken: "alice-a2", RefreshToken: "alice-r2"},
		Profile: &domain.Profile{ID: "alice"},
	}}

	if err := <-done; !errors.Is(err, domain.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	got := store.Snapshot()
	if got.Token != "access-bob" || got.CurrentUser == nil || got.CurrentUser.ID != "bob" {
		t.Fatalf("late refresh overwrote the newer login: %+v", got)
	}
}

func TestFlow_RejectedRefreshAfterNewLoginKeepsSessionValid(t *testing.T) {
	auth := &stubAuth{replies: map[string]chan reply{"bob@example.com": make(chan reply, 1)}}
	flow, store := newFlow(t, auth)
	store.Establish(domain.Session{Token: "alice-a1", RefreshToken: "alice-r1", CurrentUser: &domain.Profile{ID: "alice"}})

	done := startRefresh(t, flow, auth)
	auth.replies["bob@example.com"] <- reply{res: result("bob", domain.UserTypeAdmin)}
	if _, err := flow.Login(context.Background(), Credentials{Email: "bob@example.com", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	auth.refreshGate <- reply{err: domain.ErrTokenInvalid}

	if err := <-done; !errors.Is(err, domain.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if store.InvalidSession() {
		t.Fatalf("stale rejection marked the new session invalid")
	}
}

func TestFlow_RefreshRejectedMarksInvalid(t *testing.T) {
	auth := &stubAuth{refreshErr: domain.ErrTokenInvalid}
	flow, store := newFlow(t, auth)
	store.Establish(domain.Session{Token: "a", RefreshToken: "r", CurrentUser: &domain.Profile{ID: "1"}})

	err := flow.Refresh(context.Background())
	if !errors.Is(err, domain.ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession, got %v", err)
	}
	if !store.InvalidSession() || store.CurrentUser() == nil {
		t.Fatalf("session must be kept but marked invalid: %+v", store.Snapshot())
	}
}

func TestFlow_RefreshTransportFailureKeepsSession(t *testing.T) {
	auth := &stubAuth{refreshErr: &domain.TransportError{Op: "refresh", Err: errors.New("down")}}
	flow, store := newFlow(t, auth)
	store.Establish(domain.Session{Token: "a", RefreshToken: "r", CurrentUser: &domain.Profile{ID: "1"}})

	if err := flow.Refresh(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if store.InvalidSession() || store.Token() != "a" {
		t.Fatalf("transport failure must not change the session")
	}
}

func TestFlow_LogoutAlwaysResets(t *testing.T) {
	auth := &stubAuth{logoutErr: &domain.TransportError{Op: "logout", Err: errors.New("down")}}
	flow, store := newFlow(t, auth)
	store.Establish(domain.Session{Token: "a", RefreshToken: "r", CurrentUser: &domain.Profile{ID: "1"}})

	if err := flow.Logout(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected the revoke error to be reported, got %v", err)
	}
	if store.Snapshot() != (domain.Session{}) {
		t.Fatalf("logout must reset the session")
	}
	if len(auth.logouts) != 1 || auth.logouts[0] != "r" {
		t.Fatalf("unexpected revokes %v", auth.logouts)
	}

	if err := flow.Logout(context.Background()); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if len(auth.logouts) != 1 {
		t.Fatalf("logged-out session must not call the server")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
