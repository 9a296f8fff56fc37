package config

import (
	"os"
	"path/filepath"
	"time"
)

// Defaults. The cache layout mirrors what slide repositories expect when built standalone.
const (
	DefaultAPIURL       = "https://api.github.com"
	DefaultCacheDir     = "build/cache"
	DefaultOverrideFile = "slide.json"
	DefaultManifestFile = "info.json"
	DefaultDistDir      = "dist"
	DefaultOutputDir    = "dist"
	DefaultModuleFile   = "build/slides.json"
	DefaultTimeout      = 10 * time.Minute
	DefaultSubject      = "slides.manifest"
	DefaultInterval     = 30 * time.Minute
	DefaultListen       = ":8080"
	DefaultHistoryFile  = "history.db"
)

// Default returns a configuration with every default applied and no owner set.
func Default() *Config {
	c := &Config{}
	_ = c.normalize()
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Forge.APIURL == "" {
		c.Forge.APIURL = DefaultAPIURL
	}
	if c.Forge.Token == "" {
		c.Forge.Token = os.Getenv("GITHUB_TOKEN")
	}

	if c.Cache.Dir == "" {
		c.Cache.Dir = DefaultCacheDir
	}
	if c.Cache.OverrideFile == "" {
		c.Cache.OverrideFile = DefaultOverrideFile
	}
	if c.Cache.ManifestFile == "" {
		c.Cache.ManifestFile = DefaultManifestFile
	}
	if c.Cache.DistDir == "" {
		c.Cache.DistDir = DefaultDistDir
	}

	b := &c.Build
	if len(b.InstallCommand) == 0 {
		b.InstallCommand = []string{"yarn"}
	}
	if len(b.BuildCommand) == 0 {
		b.BuildCommand = []string{"yarn", "build"}
	}
	if b.Timeout == 0 {
		b.Timeout = DefaultTimeout
	}
	if b.Concurrency == 0 {
		b.Concurrency = 1
	}
	if b.RetryInitialDelay == 0 {
		b.RetryInitialDelay = time.Second
	}
	if b.RetryMaxDelay == 0 {
		b.RetryMaxDelay = 30 * time.Second
	}

	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDir
	}
	if c.Bundle.ModuleFile == "" {
		c.Bundle.ModuleFile = DefaultModuleFile
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.Cache.Dir, DefaultHistoryFile)
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = DefaultSubject
	}
	if c.Watch.Interval == 0 {
		c.Watch.Interval = DefaultInterval
	}
	if c.Watch.Listen == "" {
		c.Watch.Listen = DefaultListen
	}
}
