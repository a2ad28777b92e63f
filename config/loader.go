package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Source represents a configuration source.
type Source interface {
	Name() string
	Load() (*Config, error)
	Priority() int
}

// Validator validates configuration.
type Validator interface {
	Validate(cfg *Config) error
}

// Merger merges configurations from multiple sources.
type Merger interface {
	Merge(base, override *Config) *Config
}

// Loader loads configuration from multiple sources, lowest priority first.
type Loader struct {
	sources    []Source
	validators []Validator
	merger     Merger
}

func NewLoader() *Loader {
	return &Loader{merger: &DefaultMerger{}}
}

func (l *Loader) AddSource(source Source) {
	l.sources = append(l.sources, source)
}

func (l *Loader) AddValidator(v Validator) {
	l.validators = append(l.validators, v)
}

func (l *Loader) SetMerger(merger Merger) {
	l.merger = merger
}

// LoadWithDefaults loads configuration with DefaultConfig() as the base,
// applying each source in priority order.
func (l *Loader) LoadWithDefaults() (*Config, error) {
	sort.Slice(l.sources, func(i, j int) bool { return l.sources[i].Priority() < l.sources[j].Priority() })

	config, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	for _, source := range l.sources {
		cfg, err := source.Load()
		if err != nil {
			continue // a missing optional source is not fatal
		}
		config = l.merger.Merge(config, cfg)
	}

	for _, validator := range l.validators {
		if err := validator.Validate(config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return config, nil
}

// FileSource loads configuration from a file.
type FileSource struct {
	path   string
	format Format
}

func NewFileSource(path string) *FileSource {
	format := FormatYAML
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".toml":
		format = FormatTOML
	}
	return &FileSource{path: path, format: format}
}

func (f *FileSource) Name() string { return fmt.Sprintf("file:%s", f.path) }
func (f *FileSource) Priority() int { return 100 }

func (f *FileSource) Load() (*Config, error) {
	expandedPath := os.ExpandEnv(f.path)
	if _, err := os.Stat(expandedPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", expandedPath)
	}

	v := viper.New()
	v.SetConfigFile(expandedPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", expandedPath, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from %s: %w", expandedPath, err)
	}
	return &config, nil
}

// EnvSource loads configuration from environment variables.
type EnvSource struct {
	prefix string
}

func NewEnvSource(prefix string) *EnvSource { return &EnvSource{prefix: prefix} }

func (e *EnvSource) Name() string { return fmt.Sprintf("env:%s", e.prefix) }
func (e *EnvSource) Priority() int { return 200 }

func (e *EnvSource) Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(e.prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	e.setAllKeys(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from environment: %w", err)
	}
	return &config, nil
}

func (e *EnvSource) setAllKeys(v *viper.Viper) {
	v.SetDefault("app.log_level", "")
	v.SetDefault("app.log_file", "")
	v.SetDefault("app.timezone", "")
	v.SetDefault("app.verbose", false)
	v.SetDefault("app.no_color", false)

	v.SetDefault("data.user_data_root", "")

	v.SetDefault("performance.worker_count", 0)

	v.SetDefault("pricing.ttl_override", "")
	v.SetDefault("pricing.offline", false)

	v.SetDefault("debug.enabled", false)
}

// FlagSource loads configuration from command-line flags already bound
// to a pflag.FlagSet by the cmd package.
type FlagSource struct {
	flags *pflag.FlagSet
}

func NewFlagSource(flags *pflag.FlagSet) *FlagSource { return &FlagSource{flags: flags} }

func (f *FlagSource) Name() string { return "flags" }
func (f *FlagSource) Priority() int { return 300 }

func (f *FlagSource) Load() (*Config, error) {
	config := &Config{}

	f.flags.VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			return
		}
		switch flag.Name {
		case "debug":
			if val, err := f.flags.GetBool("debug"); err == nil {
				config.Debug.Enabled = val
			}
		case "log-level":
			if val, err := f.flags.GetString("log-level"); err == nil {
				config.App.LogLevel = val
			}
		case "no-color":
			if val, err := f.flags.GetBool("no-color"); err == nil {
				config.App.NoColor = val
			}
		case "verbose":
			if val, err := f.flags.GetBool("verbose"); err == nil {
				config.App.Verbose = val
			}
		case "offline":
			if val, err := f.flags.GetBool("offline"); err == nil {
				config.Pricing.Offline = val
			}
		}
	})

	return config, nil
}

// DefaultMerger merges two configurations, with override taking precedence
// over non-zero fields only.
type DefaultMerger struct{}

func (m *DefaultMerger) Merge(base, override *Config) *Config {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	result := *base

	if override.App.LogLevel != "" {
		result.App.LogLevel = override.App.LogLevel
	}
	if override.App.LogFile != "" {
		result.App.LogFile = override.App.LogFile
	}
	if override.App.Timezone != "" {
		result.App.Timezone = override.App.Timezone
	}
	result.App.Verbose = result.App.Verbose || override.App.Verbose
	result.App.NoColor = result.App.NoColor || override.App.NoColor

	if override.Data.UserDataRoot != "" {
		result.Data.UserDataRoot = override.Data.UserDataRoot
	}
	for name, path := range override.Data.AdapterPaths {
		if result.Data.AdapterPaths == nil {
			result.Data.AdapterPaths = map[string]string{}
		}
		result.Data.AdapterPaths[name] = path
	}

	if override.Perf.WorkerCount > 0 {
		result.Perf.WorkerCount = override.Perf.WorkerCount
	}

	if override.Pricing.TTLOverride > 0 {
		result.Pricing.TTLOverride = override.Pricing.TTLOverride
	}
	result.Pricing.Offline = result.Pricing.Offline || override.Pricing.Offline

	result.Debug.Enabled = result.Debug.Enabled || override.Debug.Enabled

	return &result
}
