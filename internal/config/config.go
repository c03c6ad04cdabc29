// Package config holds all chromedoctor configuration: storage paths,
// launch behaviour, and sink toggles. Settings come from an optional
// YAML file with CT_* environment variables layered on top, and every
// numeric knob is clamped to a sane range rather than rejected.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all chromedoctor settings.
type Config struct {
	// Storage
	BaseDir string `yaml:"base_dir"` // session cache directory

	// Launch behaviour
	ChromePath    string   `yaml:"chrome_path"`    // explicit executable override
	ExtraFlags    []string `yaml:"extra_flags"`    // appended after the safe flags
	LaunchTimeout int      `yaml:"launch_timeout"` // seconds to consider Chrome stable

	// Diagnostics
	JournalLines int `yaml:"journal_lines"` // journalctl -n bound

	// Session retention
	RotateDays int `yaml:"rotate_days"` // prune sessions older than this
	KeepLatest int `yaml:"keep_latest"` // never prune the newest N

	// Sink toggles
	EnableSQLite bool `yaml:"enable_sqlite"`
	EnableJSON   bool `yaml:"enable_json"`
	EnableColors bool `yaml:"enable_colors"`
}

// chromeCandidates are the well-known install locations probed when no
// explicit path is configured and PATH lookup fails.
var chromeCandidates = []string{
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/opt/google/chrome/chrome",
	"/snap/bin/chromium",
}

// ChromeCandidates returns the well-known executable locations.
func ChromeCandidates() []string {
	return append([]string(nil), chromeCandidates...)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		BaseDir:       filepath.Join(home, ".cache", "chromedoctor"),
		LaunchTimeout: 15,
		JournalLines:  200,
		RotateDays:    7,
		KeepLatest:    3,
		EnableSQLite:  true,
		EnableJSON:    true,
		EnableColors:  true,
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "chromedoctor", "config.yaml")
}

// Load reads configuration from a YAML file, falling back to defaults
// when the file does not exist, then applies environment overrides and
// range clamps.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.clamp()
	return cfg, nil
}

// Save writes the configuration to a YAML file, creating parents.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides layers CT_* environment variables over the file
// settings. Unparseable values are ignored in favour of the file value.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("CT_BASE_DIR"); dir != "" {
		c.BaseDir = dir
	}
	if path := os.Getenv("CHROME_PATH"); path != "" {
		c.ChromePath = path
	}
	if flags := os.Getenv("CT_EXTRA_FLAGS"); flags != "" {
		c.ExtraFlags = strings.Fields(flags)
	}
	if v, ok := envInt("CT_LAUNCH_TIMEOUT"); ok {
		c.LaunchTimeout = v
	}
	if v, ok := envInt("CT_JOURNAL_LINES"); ok {
		c.JournalLines = v
	}
	if v, ok := envInt("CT_ROTATE_DAYS"); ok {
		c.RotateDays = v
	}
	if v, ok := envBool("CT_ENABLE_SQLITE"); ok {
		c.EnableSQLite = v
	}
	if v, ok := envBool("CT_ENABLE_JSON"); ok {
		c.EnableJSON = v
	}
	if v, ok := envBool("CT_COLOR"); ok {
		c.EnableColors = v
	}
}

// clamp forces every numeric knob into its supported range.
func (c *Config) clamp() {
	c.LaunchTimeout = clampInt(c.LaunchTimeout, 1, 300)
	c.JournalLines = clampInt(c.JournalLines, 10, 10000)
	c.RotateDays = clampInt(c.RotateDays, 1, 365)
	c.KeepLatest = clampInt(c.KeepLatest, 0, 100)
}

// LockPath is the well-known advisory lock file guarding against
// concurrent invocations.
func (c *Config) LockPath() string {
	return filepath.Join(c.BaseDir, "chromedoctor.lock")
}

// GetLaunchTimeout returns the launch timeout as a duration.
func (c *Config) GetLaunchTimeout() time.Duration {
	return time.Duration(c.LaunchTimeout) * time.Second
}

// GetRotateAge returns the session retention age as a duration.
func (c *Config) GetRotateAge() time.Duration {
	return time.Duration(c.RotateDays) * 24 * time.Hour
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envBool(key string) (bool, bool) {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	default:
		return false, false
	}
}
