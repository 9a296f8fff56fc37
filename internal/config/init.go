package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
)

// Example returns the configuration written by Init.
func Example() *Config {
	isOrg := true
	c := &Config{
		Owner:  "my-slides-org",
		IsOrg:  &isOrg,
		Ignore: []string{"index", "/template/"},
		Forge:  ForgeConfig{APIURL: DefaultAPIURL, Token: "${GITHUB_TOKEN}"},
		Build: BuildConfig{
			Mode:         BuildModeProduction,
			Concurrency:  1,
			MaxRetries:   2,
			RetryBackoff: RetryBackoffLinear,
		},
		History: HistoryConfig{Enabled: true},
	}
	c.applyDefaults()
	c.Forge.Token = "${GITHUB_TOKEN}"
	return c
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).
			WithContext("path", path).
			Build()
	}

	data, err := yaml.Marshal(Example())
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	header := []byte("# slidebuilder configuration\n# ${VAR} references are expanded from the environment (.env files are loaded first).\n# Write $$ for a literal $, e.g. [sh, -c, \"echo $$SLIDE_BASE\"] sees SLIDE_BASE at build time.\n")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to create config directory").Build()
		}
	}
	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", path).
			Build()
	}
	return nil
}
