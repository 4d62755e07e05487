package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/skillboard/portal/docs"
	"github.com/skillboard/portal/internal/api/handler"
	"github.com/skillboard/portal/internal/api/middleware"
	"github.com/skillboard/portal/internal/core/access"
	"github.com/skillboard/portal/internal/core/domain"
	"github.com/skillboard/portal/internal/core/ports"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Auth   ports.AuthService
	Tokens middleware.TokenParser
	Policy *access.Policy
	// Checks are the readiness checks, keyed by dependency name.
	Checks  map[string]handler.Check
	Log     zerolog.Logger
	Swagger bool
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(middleware.Metrics())

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Auth)
	navHandler := handler.NewNavigationHandler(d.Policy)
	requireAuth := middleware.Auth(d.Tokens)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)

	// --- API routes ---
	v1 := e.Group("/v1")
	v1.GET("/me", authHandler.Me, requireAuth)
	v1.GET("/navigation", navHandler.Navigate, middleware.OptionalAuth(d.Tokens))

	admin := v1.Group("/admin", requireAuth, middleware.RBAC(domain.UserTypeAdmin))
	admin.POST("/users", authHandler.Register)

	// --- Health checks (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Checks)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if d.Swagger {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	return e
}
