// Package config mirrors the teacher's Source/Validator/Merger-interface,
// viper+pflag-backed multi-source load, trimmed to the fields the
// pipeline actually reads.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/toktrack/usagepipe/pipeerr"
)

// Config is the complete application configuration.
type Config struct {
	App      AppConfig      `yaml:"app" json:"app"`
	Data     DataConfig     `yaml:"data" json:"data"`
	Perf     PerformanceConfig `yaml:"performance" json:"performance"`
	Pricing  PricingConfig  `yaml:"pricing" json:"pricing"`
	Debug    DebugConfig    `yaml:"debug" json:"debug"`
}

// AppConfig contains general application settings.
type AppConfig struct {
	Name     string `yaml:"name" json:"name"`
	Version  string `yaml:"version" json:"version"`
	LogLevel string `yaml:"log_level" json:"log_level"`
	LogFile  string `yaml:"log_file" json:"log_file"`
	Timezone string `yaml:"timezone" json:"timezone"`
	Verbose  bool   `yaml:"verbose" json:"verbose"`
	NoColor  bool   `yaml:"no_color" json:"no_color"`
}

// DataConfig contains adapter search-path overrides and the user-data-root
// override (mainly exercised by tests, which should never touch a real
// home directory).
type DataConfig struct {
	// AdapterPaths overrides an adapter's default data_dir() by name, e.g.
	// {"claude-code": "/tmp/fixture/.claude/projects"}.
	AdapterPaths map[string]string `yaml:"adapter_paths" json:"adapter_paths"`
	UserDataRoot string             `yaml:"user_data_root" json:"user_data_root"`
}

// PerformanceConfig tunes IngestEngine's worker pool.
type PerformanceConfig struct {
	WorkerCount int `yaml:"worker_count" json:"worker_count"`
}

// PricingConfig tunes PricingResolver behavior.
type PricingConfig struct {
	TTLOverride time.Duration `yaml:"ttl_override" json:"ttl_override"`
	Offline     bool          `yaml:"offline" json:"offline"`
}

// DebugConfig contains debugging settings.
type DebugConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Version is set at build time.
var Version = "dev"

// DefaultConfig returns a configuration with default values. It returns
// pipeerr.ErrHomeDirUnavailable when the user's home directory cannot be
// resolved: per spec §6.3, that failure is a hard error, never silently
// substituted with a CWD-relative path.
func DefaultConfig() (*Config, error) {
	userDataRoot, err := defaultUserDataRoot()
	if err != nil {
		return nil, err
	}
	return &Config{
		App: AppConfig{
			Name:     "usagepipe",
			Version:  Version,
			LogLevel: "info",
			Timezone: "Local",
		},
		Data: DataConfig{
			AdapterPaths: map[string]string{},
			UserDataRoot: userDataRoot,
		},
		Perf: PerformanceConfig{
			WorkerCount: runtime.NumCPU(),
		},
		Pricing: PricingConfig{
			TTLOverride: time.Hour,
		},
		Debug: DebugConfig{
			Enabled: false,
		},
	}, nil
}

// defaultUserDataRoot resolves to ~/.usagepipe. A home directory that
// cannot be resolved is pipeerr.ErrHomeDirUnavailable, matching
// adapters.homeDir's own policy (adapters/adapter.go) — never a
// CWD-relative fallback.
func defaultUserDataRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", pipeerr.ErrHomeDirUnavailable
	}
	return filepath.Join(home, ".usagepipe"), nil
}

// ConfigPaths returns the default configuration file paths in order of
// precedence.
func ConfigPaths() []string {
	return []string{
		"./usagepipe.yaml",
		"$HOME/.config/usagepipe/config.yaml",
		"$HOME/.usagepipe/config.yaml",
		"/etc/usagepipe/config.yaml",
	}
}

// Format represents a configuration file format.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
	FormatTOML
)
