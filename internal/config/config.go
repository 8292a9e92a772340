// Package config loads the engine configuration from a TOML file with
// defaults, environment overrides, and strict validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Page size bounds observed from the provider: below 10 the listing makes
// too many round trips, above 50 responses get heavy. Pagination means
// this only sets batch granularity, never a cap on total files.
const (
	MinPageSize = 10
	MaxPageSize = 50
)

// Worker pool bounds. Transfers within a tick run with at most this much
// parallelism to bound provider rate-limit exposure.
const (
	MinWorkers = 1
	MaxWorkers = 5
)

// appDirName is the directory under the user config dir holding the
// config file, session file, and manifest database.
const appDirName = "finetica"

// Config is the engine configuration.
type Config struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	FolderName   string `toml:"folder_name"`
	SinkDir      string `toml:"sink_dir"`
	SessionFile  string `toml:"session_file"`
	ManifestDB   string `toml:"manifest_db"`
	SyncInterval string `toml:"sync_interval"`
	PageSize     int    `toml:"page_size"`
	Workers      int    `toml:"workers"`
	LogLevel     string `toml:"log_level"`
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.toml")
}

func configDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}

	return filepath.Join(base, appDirName)
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	dir := configDir()

	return &Config{
		FolderName:   "Finetica",
		SinkDir:      filepath.Join(dir, "inbox"),
		SessionFile:  filepath.Join(dir, "session.json"),
		ManifestDB:   filepath.Join(dir, "manifest.db"),
		SyncInterval: "1m",
		PageSize:     50,
		Workers:      1,
		LogLevel:     "info",
	}
}

// Load reads and parses a TOML config file, applies environment overrides,
// validates, and returns the resulting Config. Unknown keys are fatal —
// silently ignoring a typo in a config file leads to hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}

		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config with defaults plus environment overrides. Supports the
// zero-config first-run experience.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		applyEnv(cfg)

		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// applyEnv overlays FINETICA_* environment variables onto the config.
// Environment beats file so containerized deployments can inject secrets
// without writing them to disk.
func applyEnv(cfg *Config) {
	overlay := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	overlay("FINETICA_CLIENT_ID", &cfg.ClientID)
	overlay("FINETICA_CLIENT_SECRET", &cfg.ClientSecret)
	overlay("FINETICA_FOLDER_NAME", &cfg.FolderName)
	overlay("FINETICA_SINK_DIR", &cfg.SinkDir)
	overlay("FINETICA_SYNC_INTERVAL", &cfg.SyncInterval)
	overlay("FINETICA_LOG_LEVEL", &cfg.LogLevel)

	if v := os.Getenv("FINETICA_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
}

// Validate checks bounds and required fields.
func Validate(cfg *Config) error {
	if cfg.FolderName == "" {
		return errors.New("config: folder_name must not be empty")
	}

	if cfg.SinkDir == "" {
		return errors.New("config: sink_dir must not be empty")
	}

	if _, err := cfg.Interval(); err != nil {
		return err
	}

	if cfg.PageSize < MinPageSize || cfg.PageSize > MaxPageSize {
		return fmt.Errorf("config: page_size must be between %d and %d, got %d",
			MinPageSize, MaxPageSize, cfg.PageSize)
	}

	if cfg.Workers < MinWorkers || cfg.Workers > MaxWorkers {
		return fmt.Errorf("config: workers must be between %d and %d, got %d",
			MinWorkers, MaxWorkers, cfg.Workers)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", cfg.LogLevel)
	}

	return nil
}

// Interval parses the sync cadence.
func (c *Config) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.SyncInterval)
	if err != nil {
		return 0, fmt.Errorf("config: invalid sync_interval %q: %w", c.SyncInterval, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("config: sync_interval must be positive, got %q", c.SyncInterval)
	}

	return d, nil
}
