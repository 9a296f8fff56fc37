package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
)

type validator struct {
	problems []string
	fields   []string
}

func (v *validator) fail(field, format string, args ...any) {
	v.fields = append(v.fields, field)
	v.problems = append(v.problems, field+": "+fmt.Sprintf(format, args...))
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return errors.ConfigError("configuration validation failed: "+strings.Join(v.problems, "; ")).
		WithContext("fields", v.fields).
		Build()
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	v := &validator{}

	if strings.TrimSpace(c.Owner) == "" {
		v.fail("owner", "is required")
	}
	if _, err := c.IgnorePatterns(); err != nil {
		v.fail("ignore", "%v", err)
	}

	if u, err := url.Parse(c.Forge.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.fail("forge.api_url", "must be an absolute http(s) URL, got %q", c.Forge.APIURL)
	}

	for field, name := range map[string]string{
		"cache.override_file": c.Cache.OverrideFile,
		"cache.manifest_file": c.Cache.ManifestFile,
		"cache.dist_dir":      c.Cache.DistDir,
	} {
		if filepath.IsAbs(name) || strings.Contains(filepath.ToSlash(name), "..") {
			v.fail(field, "must be a relative path inside the cache, got %q", name)
		}
	}

	b := c.Build
	if b.Mode == BuildModeProduction {
		if len(b.InstallCommand) == 0 || strings.TrimSpace(b.InstallCommand[0]) == "" {
			v.fail("build.install_command", "must name an executable")
		}
		if len(b.BuildCommand) == 0 || strings.TrimSpace(b.BuildCommand[0]) == "" {
			v.fail("build.build_command", "must name an executable")
		}
	}
	if b.Timeout < 0 {
		v.fail("build.timeout", "must not be negative")
	}
	if b.Concurrency < 1 {
		v.fail("build.concurrency", "must be at least 1, got %d", b.Concurrency)
	}
	if b.MaxRetries < 0 {
		v.fail("build.max_retries", "must not be negative")
	}
	if b.RetryInitialDelay < 0 || b.RetryMaxDelay < 0 {
		v.fail("build.retry_initial_delay", "retry delays must not be negative")
	}

	if c.Watch.Interval < 0 {
		v.fail("watch.interval", "must not be negative")
	}
	if c.Notify.NATSURL != "" && strings.TrimSpace(c.Notify.Subject) == "" {
		v.fail("notify.subject", "is required when notify.nats_url is set")
	}
	return v.err()
}
