package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names, checked in order.
const (
	ConfigFileName    = "cloudscape.yaml"
	ConfigFileNameAlt = "cloudscape.yml"
)

// EnvPrefix is the environment variable override prefix:
// CLOUDSCAPE_CACHE_PATH -> cache_path.
const EnvPrefix = "CLOUDSCAPE_"

// maxUpwardSearchLevels limits how far up the directory tree the config
// file search walks.
const maxUpwardSearchLevels = 10

var configFileUsed string

// GetConfigFileUsed returns the path of the config file the last Load call
// read, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

func configExistsIn(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigFile resolves the config file to use. An explicit path wins;
// otherwise the search walks upward from the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Load builds the configuration with the precedence chain
// flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"cache_path":        DefaultCachePath,
		"coalesce_interval": DefaultCoalesceInterval.String(),
		"log_level":         DefaultLogLevel,
		"output":            DefaultOutput,
		"verbose":           false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFileUsed, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	ApplyDefaults(&cfg)

	// The cache path follows the config file when one was found, so a
	// project-local cloudscape.yaml keeps its cache next to itself.
	if configFileUsed != "" && cfg.CachePath != ":memory:" && !filepath.IsAbs(cfg.CachePath) {
		cfg.CachePath = filepath.Join(filepath.Dir(configFileUsed), cfg.CachePath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
