package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skillboard/portal/internal/core/domain"
)

// fakePortal serves the auth endpoints for a single employee account.
func fakePortal(t *testing.T) string {
	t.Helper()
	profile := domain.Profile{ID: "u-1", Email: "alice@example.com", Name: "Alice", Type: domain.UserTypeEmployee}
	tokens := map[string]any{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
		"profile":       profile,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Email != "alice@example.com" || in.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"incorrect email or password"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(tokens)
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, serverURL, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(append([]string{"--server", serverURL, "--storage", "file", "--session-dir", dir}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_LoginWhoamiLogout(t *testing.T) {
	url := fakePortal(t)
	dir := t.TempDir()

	out, err := run(t, url, dir, "alice@example.com\nsecret\n", "login")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Logged in as Alice <alice@example.com> (employee)") {
		t.Fatalf("unexpected login output %q", out)
	}

	out, err = run(t, url, dir, "", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "type: employee") {
		t.Fatalf("session not persisted between invocations: %q", out)
	}

	out, err = run(t, url, dir, "", "open", "/admin/profiles")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if strings.TrimSpace(out) != "/admin/profiles -> /profile" {
		t.Fatalf("unexpected open output %q", out)
	}

	if _, err := run(t, url, dir, "", "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := run(t, url, dir, "", "whoami"); err == nil {
		t.Fatalf("expected whoami to fail after logout")
	}
	out, _ = run(t, url, dir, "", "open", "/profile")
	if strings.TrimSpace(out) != "/profile -> /login" {
		t.Fatalf("logged-out viewer must be sent to login, got %q", out)
	}
}

func TestCLI_LoginRejected(t *testing.T) {
	url := fakePortal(t)
	dir := t.TempDir()

	_, err := run(t, url, dir, "wrong\n", "login", "--email", "alice@example.com")
	if err == nil || err.Error() != domain.ErrInvalidCredentials.Error() {
		t.Fatalf("expected generic credentials error, got %v", err)
	}
	if _, err := run(t, url, dir, "", "whoami"); err == nil {
		t.Fatalf("failed login must not create a session")
	}
}

func TestCLI_RefreshRejectedMarksSessionInvalid(t *testing.T) {
	url := fakePortal(t)
	dir := t.TempDir()

	if _, err := run(t, url, dir, "secret\n", "login", "--email", "alice@example.com"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := run(t, url, dir, "", "refresh"); err == nil {
		t.Fatalf("expected refresh to fail")
	}

	_, err := run(t, url, dir, "", "whoami")
	if err == nil || !strings.Contains(err.Error(), domain.ErrStaleSession.Error()) {
		t.Fatalf("expected stale session, got %v", err)
	}
	out, _ := run(t, url, dir, "", "open", "/profile")
	if strings.TrimSpace(out) != "/profile -> /login" {
		t.Fatalf("invalid session must be treated as anonymous, got %q", out)
	}
}
