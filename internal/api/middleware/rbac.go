package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/skillboard/portal/internal/core/domain"
)

// RBAC lets the request through only when the authenticated user's type is
// one of allowed. It must run after Auth.
func RBAC(allowed ...domain.UserType) echo.MiddlewareFunc {
	set := make(map[domain.UserType]struct{}, len(allowed))
	for _, t := range allowed {
		set[t] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userType, _ := c.Get(CtxUserType).(domain.UserType)
			if _, ok := set[userType]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
