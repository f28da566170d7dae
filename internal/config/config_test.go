package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err, "an explicit but missing config file fails")

	cfg, err = Load(writeConfig(t, ""), nil)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.CoalesceInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, OutputTable, cfg.Output)
	assert.Equal(t, "cloudscape.db", filepath.Base(cfg.CachePath))
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
cache_path: my-cache.db
coalesce_interval: 50ms
log_level: warn
providers:
  - sqlServer
  - sqlDatabase
account:
  key: acct-1
  display_name: mock_account@test.com
  tenants:
    - id: tenant-1
      display_name: Tenant One
filters:
  subscriptions:
    - sub-1
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 50*time.Millisecond, cfg.CoalesceInterval)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []string{"sqlServer", "sqlDatabase"}, cfg.Providers)
	assert.Equal(t, []string{"sub-1"}, cfg.Filters.Subscriptions)

	account := cfg.AccountValue()
	assert.Equal(t, "acct-1", account.Key)
	require.Len(t, account.Tenants, 1)
	assert.Equal(t, "Tenant One", account.Tenants[0].DisplayName)

	// Relative cache paths anchor to the config file's directory.
	assert.Equal(t, filepath.Join(filepath.Dir(path), "my-cache.db"), cfg.CachePath)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")
	t.Setenv("CLOUDSCAPE_LOG_LEVEL", "error")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")
	t.Setenv("CLOUDSCAPE_LOG_LEVEL", "error")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	flags.String("cache-path", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level=debug", "--cache-path=:memory:"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":memory:", cfg.CachePath, "the in-memory sentinel is never path-resolved")
}

func TestLoad_UnchangedFlagsAreIgnored(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel, "a flag left at its default must not mask the file")
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, "log_level: shout\n"), nil)
	assert.ErrorContains(t, err, "unknown log level")

	_, err = Load(writeConfig(t, "output: xml\n"), nil)
	assert.ErrorContains(t, err, "unknown output format")
}

func TestLogLevelValue(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		level slog.Level
	}{
		{"default", Config{}, slog.LevelInfo},
		{"debug", Config{LogLevel: "debug"}, slog.LevelDebug},
		{"warn", Config{LogLevel: "warn"}, slog.LevelWarn},
		{"warning alias", Config{LogLevel: "warning"}, slog.LevelWarn},
		{"error", Config{LogLevel: "error"}, slog.LevelError},
		{"verbose wins", Config{LogLevel: "error", Verbose: true}, slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.level, tt.cfg.LogLevelValue())
		})
	}
}
