// Package config handles configuration loading and validation for waggle.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from yaml strings like
// "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// TrackerConfig holds settings for the external bd issue tracker.
type TrackerConfig struct {
	// Bin is the tracker CLI binary name or path.
	Bin string `yaml:"bin"`
	// DefaultPriority (0-4) is used for anchor issues, which have no
	// task priority to translate.
	DefaultPriority int `yaml:"default_priority"`
}

// SyncConfig holds reconciliation settings.
type SyncConfig struct {
	// Timeout bounds one whole sync invocation, tracker calls included.
	Timeout Duration `yaml:"timeout"`
	// Skip lists session-id glob patterns that are never synced.
	Skip []string `yaml:"skip"`
}

// Config holds the application configuration.
type Config struct {
	Tracker TrackerConfig `yaml:"tracker"`
	Sync    SyncConfig    `yaml:"sync"`
	DataDir string        `yaml:"-"` // set by caller, not from config file
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Tracker: TrackerConfig{
			Bin:             "bd",
			DefaultPriority: 2,
		},
		Sync: SyncConfig{
			Timeout: Duration(30 * time.Second),
		},
	}
}

// Load reads the config file at path, applying defaults for anything
// unset. A missing file is not an error; defaults are returned.
func Load(path, dataDir string) (Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.Tracker.Bin == "" {
		return fmt.Errorf("tracker.bin is required")
	}
	if c.Tracker.DefaultPriority < 0 || c.Tracker.DefaultPriority > 4 {
		return fmt.Errorf("tracker.default_priority must be between 0 and 4, got %d", c.Tracker.DefaultPriority)
	}
	if c.Sync.Timeout.Std() <= 0 {
		return fmt.Errorf("sync.timeout must be positive")
	}
	for _, pattern := range c.Sync.Skip {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("sync.skip: invalid pattern %q", pattern)
		}
	}
	return nil
}

// MappingPath is the mapping document location under the data dir.
func (c Config) MappingPath() string {
	return filepath.Join(c.DataDir, "mappings.json")
}

// ShouldSkip reports whether a session id matches any sync.skip
// pattern.
func (c Config) ShouldSkip(sessionID string) bool {
	for _, pattern := range c.Sync.Skip {
		if ok, err := doublestar.Match(pattern, sessionID); err == nil && ok {
			return true
		}
	}
	return false
}
