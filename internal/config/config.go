// Package config handles configuration loading, validation, and management for casetrace.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Version is the current configuration schema version.
const Version = 1

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CASETRACE_"

// Config holds the complete casetrace configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Engine configuration for deterministic evaluation.
	Engine EngineConfig `toml:"engine" json:"engine" yaml:"engine"`

	// Consensus configuration for three-way arbitration.
	Consensus ConsensusConfig `toml:"consensus" json:"consensus" yaml:"consensus"`

	// Interpret configuration for the external interpretation service.
	Interpret InterpretConfig `toml:"interpret" json:"interpret" yaml:"interpret"`

	// Archive configuration for the report store.
	Archive ArchiveConfig `toml:"archive" json:"archive" yaml:"archive"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// EngineConfig holds evaluation settings.
type EngineConfig struct {
	// OverlayTable is a YAML overlay table replacing the built-in one.
	OverlayTable string `toml:"overlay_table" json:"overlay_table" yaml:"overlay_table"`

	// Overlays limits evaluation to these overlays and their dependencies.
	// Empty means all.
	Overlays []string `toml:"overlays" json:"overlays" yaml:"overlays"`

	// Workers bounds concurrent overlay evaluation within a layer.
	// 0 means GOMAXPROCS.
	Workers int `toml:"workers" json:"workers" yaml:"workers"`

	// Strict rejects case files that fail schema validation instead of
	// degrading the malformed sections.
	Strict bool `toml:"strict" json:"strict" yaml:"strict"`
}

// ConsensusConfig holds arbitration settings.
type ConsensusConfig struct {
	// Enabled runs arbitration after evaluation.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// TimeoutSec bounds each interpretation branch.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`

	// PrefixLength is the number of leading runes compared between branches.
	PrefixLength int `toml:"prefix_length" json:"prefix_length" yaml:"prefix_length"`
}

// InterpretConfig holds interpretation client settings.
type InterpretConfig struct {
	Endpoint string `toml:"endpoint" json:"endpoint" yaml:"endpoint"`

	// APIKey is sent as a bearer token. Prefer CASETRACE_API_KEY.
	APIKey string `toml:"api_key" json:"api_key" yaml:"api_key"`

	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
	MaxRetries int `toml:"max_retries" json:"max_retries" yaml:"max_retries"`
	BackoffMs  int `toml:"backoff_ms" json:"backoff_ms" yaml:"backoff_ms"`

	// RatePerSec limits outgoing requests. Negative disables limiting.
	RatePerSec float64 `toml:"rate_per_sec" json:"rate_per_sec" yaml:"rate_per_sec"`
	Burst      int     `toml:"burst" json:"burst" yaml:"burst"`
}

// ArchiveConfig holds report store settings.
type ArchiveConfig struct {
	// Enabled stores every evaluated report.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Secret keys the row HMACs. Prefer CASETRACE_ARCHIVE_SECRET.
	Secret string `toml:"secret" json:"secret" yaml:"secret"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is stdout, stderr, or file.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is required when Output is file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	AddSource bool `toml:"add_source" json:"add_source" yaml:"add_source"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Engine: EngineConfig{
			Overlays: []string{},
		},
		Consensus: ConsensusConfig{
			Enabled:      false,
			TimeoutSec:   30,
			PrefixLength: 500,
		},
		Interpret: InterpretConfig{
			TimeoutSec: 30,
			MaxRetries: 2,
			BackoffMs:  200,
			RatePerSec: 5,
			Burst:      3,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Path:    filepath.Join(dir, "reports.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// DataDir returns the base casetrace data directory.
// CASETRACE_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv(EnvPrefix + "DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Validate checks the configuration and returns the fatal issues as
// ValidationErrors, or nil.
func (c *Config) Validate() error {
	if errs := ValidateConfig(c).Errors(); len(errs) > 0 {
		return errs
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with CASETRACE_. Malformed numeric or
// boolean values are ignored.
func (c *Config) ApplyEnvOverrides() {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	// Engine overrides
	str("OVERLAY_TABLE", &c.Engine.OverlayTable)
	if v := os.Getenv(EnvPrefix + "OVERLAYS"); v != "" {
		c.Engine.Overlays = SplitList(v)
	}
	integer("WORKERS", &c.Engine.Workers)
	boolean("STRICT", &c.Engine.Strict)

	// Consensus overrides
	boolean("CONSENSUS", &c.Consensus.Enabled)
	integer("CONSENSUS_TIMEOUT_SEC", &c.Consensus.TimeoutSec)

	// Interpret overrides; credentials belong in the environment
	str("INTERPRET_ENDPOINT", &c.Interpret.Endpoint)
	str("API_KEY", &c.Interpret.APIKey)

	// Archive overrides
	boolean("ARCHIVE", &c.Archive.Enabled)
	str("ARCHIVE_PATH", &c.Archive.Path)
	str("ARCHIVE_SECRET", &c.Archive.Secret)

	// Logging overrides
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_PATH", &c.Logging.FilePath)
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Engine.Overlays = append([]string{}, c.Engine.Overlays...)
	return &clone
}

// SplitList splits a comma-separated list, dropping empty items.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
