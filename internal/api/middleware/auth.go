package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/skillboard/portal/internal/core/domain"
	"github.com/skillboard/portal/internal/core/service"
)

// Context keys set by Auth and OptionalAuth.
const (
	CtxUserID   = "user_id"
	CtxEmail    = "email"
	CtxUserType = "user_type"
)

// TokenParser validates an access token.
type TokenParser interface {
	Parse(token string) (*service.AccessClaims, error)
}

// Auth validates the bearer access token and injects its claims into the
// context. Requests without a valid token are rejected with 401.
func Auth(parser TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			token, ok := bearer(authHeader)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := parser.Parse(token)
			if errors.Is(err, domain.ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			setClaims(c, claims)
			return next(c)
		}
	}
}

// OptionalAuth injects claims when a valid bearer token is present and
// otherwise lets the request through as anonymous.
func OptionalAuth(parser TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token, ok := bearer(c.Request().Header.Get(echo.HeaderAuthorization)); ok {
				if claims, err := parser.Parse(token); err == nil {
					setClaims(c, claims)
				}
			}
			return next(c)
		}
	}
}

func bearer(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setClaims(c echo.Context, claims *service.AccessClaims) {
	c.Set(CtxUserID, claims.Subject)
	c.Set(CtxEmail, claims.Email)
	c.Set(CtxUserType, claims.Type)
}
