package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skillboard/portal/internal/api/middleware"
	"github.com/skillboard/portal/internal/core/access"
	"github.com/skillboard/portal/internal/core/domain"
	"github.com/skillboard/portal/internal/core/ports"
)

type stubAuthService struct {
	loginFn    func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error)
	refreshFn  func(ctx context.Context, refreshToken string) (*ports.LoginResult, error)
	logoutFn   func(ctx context.Context, refreshToken string) error
	registerFn func(ctx context.Context, in ports.RegisterInput) (*domain.User, error)
	profileFn  func(ctx context.Context, userID string) (*domain.Profile, error)
}

func (s *stubAuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	return s.loginFn(ctx, in)
}

func (s *stubAuthService) Refresh(ctx context.Context, refreshToken string) (*ports.LoginResult, error) {
	return s.refreshFn(ctx, refreshToken)
}

func (s *stubAuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.logoutFn(ctx, refreshToken)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	return s.profileFn(ctx, userID)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonRequest(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func loginResultFixture() *ports.LoginResult {
	return &ports.LoginResult{
		Tokens: domain.TokenPair{
			AccessToken:     "access123",
			RefreshToken:    "refresh123",
			AccessExpiresAt: time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC),
		},
		Profile: &domain.Profile{ID: "u-1", Email: "alice@example.com", Name: "Alice", Type: domain.UserTypeEmployee},
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
			if in.Email != "alice@example.com" || in.Password != "secret" {
				t.Fatalf("unexpected args: %+v", in)
			}
			return loginResultFixture(), nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"secret"}`)
	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["access_token"] != "access123" || resp["refresh_token"] != "refresh123" {
		t.Fatalf("unexpected tokens: %+v", resp)
	}
	profile, ok := resp["profile"].(map[string]any)
	if !ok || profile["id"] != "u-1" || profile["type"] != "employee" {
		t.Fatalf("unexpected profile payload: %+v", resp["profile"])
	}
	if _, leaked := profile["password_hash"]; leaked {
		t.Fatalf("password hash must never be serialised")
	}
}

func TestAuthHandler_Login_EmptyCredentialsReachService(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	handler := NewAuthHandler(stub)

	c, _ := jsonRequest(e, http.MethodPost, "/auth/login", `{"email":"","password":""}`)
	if err := handler.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Login_InvalidPayload(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, _ := jsonRequest(e, http.MethodPost, "/auth/login", "not-json")
	err := handler.Login(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		refreshFn: func(ctx context.Context, refreshToken string) (*ports.LoginResult, error) {
			if refreshToken != "refresh123" {
				return nil, domain.ErrTokenInvalid
			}
			return loginResultFixture(), nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/auth/refresh", `{"refresh_token":"refresh123"}`)
	if err := handler.Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, _ = jsonRequest(e, http.MethodPost, "/auth/refresh", `{"refresh_token":"stolen"}`)
	if err := handler.Refresh(c); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	c, _ = jsonRequest(e, http.MethodPost, "/auth/refresh", `{}`)
	if err := handler.Refresh(c); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	e := newEcho()
	var revoked string
	stub := &stubAuthService{
		logoutFn: func(ctx context.Context, refreshToken string) error {
			revoked = refreshToken
			return nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/auth/logout", `{"refresh_token":"refresh123"}`)
	if err := handler.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent || revoked != "refresh123" {
		t.Fatalf("expected 204 and revoke, got %d %q", rec.Code, revoked)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		profileFn: func(ctx context.Context, userID string) (*domain.Profile, error) {
			if userID == "gone" {
				return nil, domain.ErrUserNotFound
			}
			return &domain.Profile{ID: userID, Type: domain.UserTypeAdmin}, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodGet, "/v1/me", "")
	c.Set(middleware.CtxUserID, "u-9")
	if err := handler.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"id":"u-9"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	c, _ = jsonRequest(e, http.MethodGet, "/v1/me", "")
	c.Set(middleware.CtxUserID, "gone")
	var he *echo.HTTPError
	if err := handler.Me(c); !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("deleted account must yield 401, got %v", err)
	}

	c, _ = jsonRequest(e, http.MethodGet, "/v1/me", "")
	if err := handler.Me(c); !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("missing claims must yield 401, got %v", err)
	}
}

func TestAuthHandler_Register(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
			if in.Email == "taken@example.com" {
				return nil, domain.ErrUserExists
			}
			return &domain.User{ID: "u-2", Email: in.Email, Name: in.Name, Type: domain.UserType(in.Type), PasswordHash: "$2a$10$x"}, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/v1/admin/users",
		`{"email":"bob@example.com","password":"longenough","name":"Bob","type":"employee"}`)
	if err := handler.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "$2a$") {
		t.Fatalf("hash leaked in response: %s", rec.Body.String())
	}

	c, _ = jsonRequest(e, http.MethodPost, "/v1/admin/users",
		`{"email":"taken@example.com","password":"longenough","name":"Bob","type":"employee"}`)
	if err := handler.Register(c); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	c, _ = jsonRequest(e, http.MethodPost, "/v1/admin/users",
		`{"email":"bob@example.com","password":"longenough","name":"Bob","type":"contractor"}`)
	err := handler.Register(c)
	if !errors.Is(err, ErrValidation) || !strings.Contains(err.Error(), "type must be one of") {
		t.Fatalf("expected user type validation error, got %v", err)
	}
}

func TestNavigationHandler(t *testing.T) {
	e := newEcho()
	handler := NewNavigationHandler(access.DefaultPolicy())

	cases := []struct {
		name     string
		path     string
		userType domain.UserType
		want     access.Decision
	}{
		{"anonymous", "/profile", "", access.Decision{Redirect: access.LoginPath}},
		{"employee on admin", "/admin/profiles", domain.UserTypeEmployee, access.Decision{Redirect: access.EmployeeLanding}},
		{"admin on admin", "/admin/profiles", domain.UserTypeAdmin, access.Decision{Allow: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := jsonRequest(e, http.MethodGet, "/v1/navigation?path="+tc.path, "")
			if tc.userType != "" {
				c.Set(middleware.CtxUserID, "u-1")
				c.Set(middleware.CtxUserType, tc.userType)
			}
			if err := handler.Navigate(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			var got access.Decision
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if got != tc.want {
				t.Fatalf("decision = %+v, want %+v", got, tc.want)
			}
		})
	}

	c, _ := jsonRequest(e, http.MethodGet, "/v1/navigation?path=/nowhere", "")
	if err := handler.Navigate(c); !errors.Is(err, domain.ErrUnknownRoute) {
		t.Fatalf("expected ErrUnknownRoute, got %v", err)
	}
}

func TestReadinessHandler(t *testing.T) {
	e := newEcho()
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	c, rec := jsonRequest(e, http.MethodGet, "/health/ready", "")
	if err := NewReadinessHandler(map[string]Check{"mongodb": ok, "redis": ok}).Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, rec = jsonRequest(e, http.MethodGet, "/health/ready", "")
	_ = NewReadinessHandler(map[string]Check{"mongodb": ok, "redis": down}).Readiness(c)
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("expected 503 with cause, got %d %s", rec.Code, rec.Body.String())
	}
}
