package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skillboard/portal/internal/core/domain"
)

var testProfile = &domain.Profile{ID: "u1", Email: "a@example.com", Name: "A", Type: domain.UserTypeEmployee}

func TestTokenIssuer_AccessRoundTrip(t *testing.T) {
	iss := NewTokenIssuer("secret", "portal", time.Minute, time.Hour)

	tok, exp, err := iss.Access(testProfile)
	if err != nil {
		t.Fatalf("Access: %v", err)
	}
	if time.Until(exp) > time.Minute+time.Second {
		t.Fatalf("unexpected expiry: %s", exp)
	}

	claims, err := iss.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "a@example.com" || claims.Type != domain.UserTypeEmployee {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti")
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	iss := NewTokenIssuer("secret", "portal", time.Minute, time.Hour)
	iss.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, _, _ := iss.Access(testProfile)

	iss.now = time.Now
	if _, err := iss.Parse(tok); err != domain.ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenIssuer_RejectsForeignTokens(t *testing.T) {
	iss := NewTokenIssuer("secret", "portal", time.Minute, time.Hour)

	other := NewTokenIssuer("other-secret", "portal", time.Minute, time.Hour)
	foreign, _, _ := other.Access(testProfile)
	if _, err := iss.Parse(foreign); err != domain.ErrTokenInvalid {
		t.Fatalf("wrong secret: expected ErrTokenInvalid, got %v", err)
	}

	wrongIssuer := NewTokenIssuer("secret", "someone-else", time.Minute, time.Hour)
	tok, _, _ := wrongIssuer.Access(testProfile)
	if _, err := iss.Parse(tok); err != domain.ErrTokenInvalid {
		t.Fatalf("wrong issuer: expected ErrTokenInvalid, got %v", err)
	}

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := iss.Parse(none); err != domain.ErrTokenInvalid {
		t.Fatalf("alg none: expected ErrTokenInvalid, got %v", err)
	}

	if _, err := iss.Parse("not-a-token"); err != domain.ErrTokenInvalid {
		t.Fatalf("garbage: expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenIssuer_RefreshTokens(t *testing.T) {
	iss := NewTokenIssuer("secret", "", 0, 0)
	if iss.RefreshTTL() != defaultRefreshTTL {
		t.Fatalf("expected default refresh ttl")
	}

	t1, h1, err := iss.Refresh()
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	t2, _, _ := iss.Refresh()
	if t1 == t2 {
		t.Fatalf("refresh tokens must be unique")
	}
	if h1 == t1 || h1 != HashRefreshToken(t1) {
		t.Fatalf("hash must be derived from token and differ from it")
	}
}
