package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full configuration surface of the engine.
type Config struct {
	// CatalogPath points at the read-only catalog database file.
	CatalogPath string `toml:"catalog_path"`

	// ExcludePatterns are glob-style rules: "*.tmp" excludes by filename,
	// "@eaDir/" or "@eaDir/*" excludes a directory subtree.
	ExcludePatterns []string `toml:"exclude_patterns"`

	// MinFileSize in bytes; files below it are not indexed. 0 disables.
	MinFileSize int64 `toml:"min_file_size"`

	// RefreshHour is the hour of day [0,23] at which the scheduled sweep
	// forces a full rebuild; -1 disables the forced rebuild (the hourly
	// change check still runs).
	RefreshHour int `toml:"refresh_hour"`

	// DebounceMs overrides the 500ms change-notification debounce window.
	DebounceMs int `toml:"debounce_ms"`
}

// Default returns the configuration defaults applied underneath any
// loaded file.
func Default() Config {
	return Config{
		RefreshHour: 3,
		DebounceMs:  500,
	}
}

// Load reads a TOML config file over the defaults and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog_path is required")
	}
	if c.RefreshHour < -1 || c.RefreshHour > 23 {
		return fmt.Errorf("refresh_hour must be -1 or in [0,23], got %d", c.RefreshHour)
	}
	if c.MinFileSize < 0 {
		return fmt.Errorf("min_file_size must be >= 0, got %d", c.MinFileSize)
	}
	if c.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms must be >= 0, got %d", c.DebounceMs)
	}
	return nil
}
