// Package cli implements the portal command-line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skillboard/portal/internal/client/api"
	"github.com/skillboard/portal/internal/client/cache"
	"github.com/skillboard/portal/internal/client/config"
	"github.com/skillboard/portal/internal/client/login"
	"github.com/skillboard/portal/internal/client/session"
	"github.com/skillboard/portal/internal/core/access"
	"github.com/skillboard/portal/pkg/logger"
)

// app is the client wiring shared by every subcommand.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	store  *session.Store
	client *api.Client
	flow   *login.Flow
	policy *access.Policy
	closer io.Closer
}

func (a *app) close() {
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

// Execute runs the CLI with os.Args and releases the session storage.
func Execute(ctx context.Context) error {
	a := &app{policy: access.DefaultPolicy()}
	defer a.close()
	return newRootCmd(a).ExecuteContext(ctx)
}

// NewRootCmd creates the root cobra command for the portal CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{policy: access.DefaultPolicy()})
}

func newRootCmd(a *app) *cobra.Command {
	var (
		flagServer     string
		flagStorage    string
		flagSessionDir string
		flagLogLevel   string
	)

	root := &cobra.Command{
		Use:   "portal",
		Short: "Skillboard portal client",
		Long:  "Log in to the skillboard portal and inspect the stored session.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("server") {
				cfg.Server = flagServer
			}
			if flags.Changed("storage") {
				cfg.Storage = flagStorage
			}
			if flags.Changed("session-dir") {
				cfg.SessionDir = flagSessionDir
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = flagLogLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return a.init(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", "", "Portal server URL (or PORTAL_SERVER env)")
	root.PersistentFlags().StringVar(&flagStorage, "storage", "", "Session storage: file, sqlite or memory (or PORTAL_STORAGE env)")
	root.PersistentFlags().StringVar(&flagSessionDir, "session-dir", "", "Directory holding the session (or PORTAL_SESSION_DIR env)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (or PORTAL_LOG_LEVEL env)")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRefreshCmd(a),
		newOpenCmd(a),
	)
	return root
}

func (a *app) init(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	a.cfg = cfg
	a.log = logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Output: stderr, Service: "portal-cli"})

	storage, err := a.openStorage(ctx)
	if err != nil {
		return err
	}

	responses := cache.New(cache.DefaultTTL)
	a.store, err = session.Open(ctx, storage,
		session.WithLogger(a.log),
		session.WithCache(responses),
	)
	if err != nil {
		a.close()
		return fmt.Errorf("open session: %w", err)
	}

	a.client = api.New(cfg.Server, api.WithCache(responses), api.WithLogger(a.log))
	a.flow = login.NewFlow(a.client, a.store, a.log)
	return nil
}

func (a *app) openStorage(ctx context.Context) (session.Storage, error) {
	if a.cfg.Storage == config.StorageMemory {
		return session.NewMemoryStorage(), nil
	}

	dir := a.cfg.SessionDir
	if dir == "" {
		d, err := session.DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	if a.cfg.Storage == config.StorageSQLite {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
		s, err := session.OpenSQLiteStorage(ctx, filepath.Join(dir, "session.db"))
		if err != nil {
			return nil, err
		}
		a.closer = s
		return s, nil
	}
	return session.NewFileStorage(dir)
}
