// Package config reads the CLI's settings from the environment.
package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Storage backends for the session snapshot.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

type Config struct {
	Server     string `env:"PORTAL_SERVER,      default=http://localhost:8080"`
	Storage    string `env:"PORTAL_STORAGE,     default=file"`
	SessionDir string `env:"PORTAL_SESSION_DIR"`
	LogLevel   string `env:"PORTAL_LOG_LEVEL,   default=warn"`
}

// Load reads the environment without validating; see Validate.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("load client config: %w", err)
	}
	return &cfg, nil
}

// Validate is called once command-line overrides have been applied.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageFile, StorageSQLite, StorageMemory:
		return nil
	default:
		return fmt.Errorf("unknown session storage %q (want file, sqlite or memory)", c.Storage)
	}
}
