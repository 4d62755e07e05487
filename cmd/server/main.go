// Command server runs the portal authentication API.
//
// @title                      Skillboard Portal API
// @version                    1.0
// @description                Authentication and session endpoints of the skillboard portal.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skillboard/portal/internal/api"
	"github.com/skillboard/portal/internal/api/handler"
	"github.com/skillboard/portal/internal/core/access"
	"github.com/skillboard/portal/internal/core/password"
	"github.com/skillboard/portal/internal/core/service"
	"github.com/skillboard/portal/internal/infrastructure/config"
	"github.com/skillboard/portal/internal/infrastructure/db/mongo"
	"github.com/skillboard/portal/internal/infrastructure/db/redis"
	"github.com/skillboard/portal/internal/infrastructure/queue"
	"github.com/skillboard/portal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "portal-api",
	})

	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.ConnectTimeout,
	}, log)
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	redisClient, err := redis.Connect(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Timeout:  cfg.Redis.ConnectTimeout,
	}, log)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	users := mongo.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}

	audit := queue.NewAuditDispatcher(cfg.Audit.Workers, cfg.Audit.QueueSize, mongo.NewAuditRepository(db), log)
	audit.Start(ctx)
	defer func() {
		audit.Close()
		audit.Wait()
	}()

	issuer := service.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	authService := service.NewAuthService(
		users,
		redis.NewTokenStore(redisClient),
		redis.NewAttemptLimiter(redisClient, service.FailureWindow),
		audit,
		password.NewHasher(password.Cost),
		issuer,
		log,
	)
	if err := authService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name); err != nil {
		return err
	}

	router := api.NewRouter(api.Dependencies{
		Auth:   authService,
		Tokens: issuer,
		Policy: access.DefaultPolicy(),
		Checks: map[string]handler.Check{
			"mongo": func(ctx context.Context) error { return mongo.Ping(ctx, db) },
			"redis": func(ctx context.Context) error { return redis.Ping(ctx, redisClient) },
		},
		Log:     log,
		Swagger: cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server did not stop cleanly")
	}
	log.Info().Msg("server stopped")
	return nil
}
