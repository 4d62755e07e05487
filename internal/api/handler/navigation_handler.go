package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/skillboard/portal/internal/core/access"
)

// NavigationHandler answers route-guard questions for clients that do not
// carry the route table themselves.
type NavigationHandler struct {
	policy *access.Policy
}

func NewNavigationHandler(policy *access.Policy) *NavigationHandler {
	return &NavigationHandler{policy: policy}
}

// Navigate evaluates the route policy for the requested path.
//
// @Summary      Route guard decision
// @Tags         navigation
// @Produce      json
// @Param        path  query     string  true  "Portal path, e.g. /admin/profiles"
// @Success      200   {object}  access.Decision
// @Failure      404   {object}  map[string]string
// @Router       /v1/navigation [get]
func (h *NavigationHandler) Navigate(c echo.Context) error {
	path := c.QueryParam("path")
	if path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path is required")
	}

	decision, err := h.policy.Evaluate(path, ctxViewer(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, decision)
}
