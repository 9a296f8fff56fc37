// Package config loads and validates the slidebuilder YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/repository"
)

// DefaultPath is the configuration file used when none is given on the command line.
const DefaultPath = "slidebuilder.yaml"

// Config is the root configuration document.
type Config struct {
	Owner  string   `yaml:"owner"`
	IsOrg  *bool    `yaml:"is_org,omitempty"`
	Ignore []string `yaml:"ignore,omitempty"`

	Forge   ForgeConfig   `yaml:"forge"`
	Cache   CacheConfig   `yaml:"cache"`
	Build   BuildConfig   `yaml:"build"`
	Output  OutputConfig  `yaml:"output"`
	Bundle  BundleConfig  `yaml:"bundle"`
	Metrics MetricsConfig `yaml:"metrics"`
	History HistoryConfig `yaml:"history"`
	Notify  NotifyConfig  `yaml:"notify"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ForgeConfig locates the repository listing API.
type ForgeConfig struct {
	APIURL string `yaml:"api_url"`
	Token  string `yaml:"token,omitempty"`
}

// CacheConfig describes the persistent working copy cache.
type CacheConfig struct {
	Dir          string `yaml:"dir"`
	OverrideFile string `yaml:"override_file"`
	ManifestFile string `yaml:"manifest_file"`
	DistDir      string `yaml:"dist_dir"`
}

// BuildConfig controls per-repository sync and build execution.
type BuildConfig struct {
	Mode              BuildMode        `yaml:"mode"`
	InstallCommand    []string         `yaml:"install_command,flow"`
	BuildCommand      []string         `yaml:"build_command,flow"`
	Timeout           time.Duration    `yaml:"timeout"`
	Concurrency       int              `yaml:"concurrency"`
	MaxRetries        int              `yaml:"max_retries"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff"`
	RetryInitialDelay time.Duration    `yaml:"retry_initial_delay"`
	RetryMaxDelay     time.Duration    `yaml:"retry_max_delay"`
}

// OutputConfig is where published slide decks end up.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// BundleConfig configures the optional external bundler run between prepare and publish.
type BundleConfig struct {
	Command    []string `yaml:"command,flow"`
	ModuleFile string   `yaml:"module_file"`
}

// MetricsConfig controls Prometheus export for one-shot runs.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// NotifyConfig controls manifest published events.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject"`
}

// WatchConfig controls the long running watch mode.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Listen   string        `yaml:"listen"`
}

// Load reads, expands, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).
				WithContext("path", path).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", path).
			Build()
	}
	return Parse(data)
}

// Parse decodes a configuration document. Environment references are expanded
// first; "$$" yields a literal "$" so commands can refer to variables set at build time.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse config").Fatal().Build()
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OwnerIsOrg reports whether the owner is listed as an organization.
func (c *Config) OwnerIsOrg() bool {
	if c.IsOrg == nil {
		return true
	}
	return *c.IsOrg
}

// IgnorePatterns compiles the ignore list. An unset list yields the default patterns.
func (c *Config) IgnorePatterns() ([]repository.Pattern, error) {
	raw := c.Ignore
	if raw == nil {
		raw = repository.DefaultIgnore
	}
	return repository.ParsePatterns(raw)
}

// DevMode reports whether builds are skipped.
func (c *Config) DevMode() bool {
	return c.Build.Mode == BuildModeDevelopment
}

func expandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}
		return os.Getenv(name)
	})
}
