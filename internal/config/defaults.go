package config

import "time"

// Output formats.
const (
	OutputTable = "table"
	OutputPlain = "plain"
	OutputJSON  = "json"
)

// Default configuration values.
const (
	DefaultCachePath        = "cloudscape.db"
	DefaultCoalesceInterval = 500 * time.Millisecond
	DefaultLogLevel         = "info"
	DefaultOutput           = OutputTable
)

// ApplyDefaults fills zero values with their defaults.
func ApplyDefaults(c *Config) {
	if c == nil {
		return
	}
	if c.CachePath == "" {
		c.CachePath = DefaultCachePath
	}
	if c.CoalesceInterval == 0 {
		c.CoalesceInterval = DefaultCoalesceInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
}
