package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/skillboard/portal/internal/api/middleware"
	"github.com/skillboard/portal/internal/core/access"
	"github.com/skillboard/portal/internal/core/domain"
)

// ctxUser extracts the identity injected by the Auth middleware. A missing
// subject means the middleware did not run and the request is rejected.
func ctxUser(c echo.Context) (userID string, userType domain.UserType, err error) {
	userID, _ = c.Get(middleware.CtxUserID).(string)
	if userID == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	userType, _ = c.Get(middleware.CtxUserType).(domain.UserType)
	return userID, userType, nil
}

// ctxViewer derives the route-guard viewer from whatever OptionalAuth
// injected. No claims means anonymous.
func ctxViewer(c echo.Context) access.Viewer {
	userID, userType, err := ctxUser(c)
	if err != nil || userID == "" {
		return access.Viewer{}
	}
	return access.Viewer{Authenticated: true, Type: userType}
}
