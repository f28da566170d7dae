// Package config provides shared configuration types for cloudscape.
// This package is decoupled from CLI concerns so other embedders can load
// the same configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

// Config holds the full cloudscape configuration.
type Config struct {
	// CachePath is the sqlite cache file; ":memory:" keeps everything
	// in-process.
	CachePath string `koanf:"cache_path"`

	// CoalesceInterval is the loader's resources-changed tick.
	CoalesceInterval time.Duration `koanf:"coalesce_interval"`

	// Providers restricts the registered provider set; empty means every
	// built-in provider.
	Providers []string `koanf:"providers"`

	LogLevel string `koanf:"log_level"`
	Verbose  bool   `koanf:"verbose"`
	Output   string `koanf:"output"`

	Account AccountConfig `koanf:"account"`
	Filters FiltersConfig `koanf:"filters"`
}

// AccountConfig describes the account discovery runs against.
type AccountConfig struct {
	Key         string         `koanf:"key"`
	DisplayName string         `koanf:"display_name"`
	Tenants     []TenantConfig `koanf:"tenants"`
}

// TenantConfig is one tenant of the configured account.
type TenantConfig struct {
	ID          string `koanf:"id"`
	DisplayName string `koanf:"display_name"`
}

// FiltersConfig seeds the selection filters at startup. IDs listed here
// become the saved selection; empty slices leave the stored selection
// untouched.
type FiltersConfig struct {
	Subscriptions []string `koanf:"subscriptions"`
	Tenants       []string `koanf:"tenants"`
}

// AccountValue converts the configured account to its core type.
func (c *Config) AccountValue() core.Account {
	account := core.Account{
		Key:         c.Account.Key,
		DisplayName: c.Account.DisplayName,
	}
	for _, t := range c.Account.Tenants {
		account.Tenants = append(account.Tenants, core.Tenant{ID: t.ID, DisplayName: t.DisplayName})
	}
	return account
}

// LogLevelValue maps the configured level name to its slog level.
// Verbose forces debug.
func (c *Config) LogLevelValue() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks the configuration for values no command can work with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.Output {
	case "", OutputTable, OutputPlain, OutputJSON:
	default:
		return fmt.Errorf("unknown output format %q (expected table, plain or json)", c.Output)
	}
	if c.CoalesceInterval < 0 {
		return fmt.Errorf("coalesce_interval must not be negative")
	}
	return nil
}
