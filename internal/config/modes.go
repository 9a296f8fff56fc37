package config

import (
	"log/slog"

	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/foundation/normalization"
)

// BuildMode selects whether repository builds run.
type BuildMode string

const (
	BuildModeProduction  BuildMode = "production"
	BuildModeDevelopment BuildMode = "development"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

var (
	buildModes = normalization.NewNormalizer(map[string]BuildMode{
		"production":  BuildModeProduction,
		"prod":        BuildModeProduction,
		"development": BuildModeDevelopment,
		"dev":         BuildModeDevelopment,
	}, BuildModeProduction)

	backoffModes = normalization.NewNormalizer(map[string]RetryBackoffMode{
		"fixed":       RetryBackoffFixed,
		"linear":      RetryBackoffLinear,
		"exponential": RetryBackoffExponential,
	}, RetryBackoffLinear)

	logFormats = normalization.NewNormalizer(map[string]LogFormat{
		"text": LogFormatText,
		"json": LogFormatJSON,
	}, LogFormatText)

	logLevels = normalization.NewNormalizer(map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}, slog.LevelInfo)
)

// NormalizeRetryBackoff converts user input into a typed mode, returning linear for unknown values.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return backoffModes.Normalize(raw)
}

// ParseLogLevel maps a level name onto a slog level. Empty input is info.
func ParseLogLevel(raw string) (slog.Level, error) {
	lvl, err := logLevels.Parse(raw)
	if err != nil {
		return slog.LevelInfo, errors.WrapError(err, errors.CategoryConfig, "invalid log level").Build()
	}
	return lvl, nil
}

// ParseLogFormat maps a format name onto a LogFormat. Empty input is text.
func ParseLogFormat(raw string) (LogFormat, error) {
	f, err := logFormats.Parse(raw)
	if err != nil {
		return LogFormatText, errors.WrapError(err, errors.CategoryConfig, "invalid log format").Build()
	}
	return f, nil
}

func (c *Config) normalize() error {
	mode, err := buildModes.Parse(string(c.Build.Mode))
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid build.mode").
			WithContext("field", "build.mode").
			Build()
	}
	c.Build.Mode = mode

	backoff, err := backoffModes.Parse(string(c.Build.RetryBackoff))
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid build.retry_backoff").
			WithContext("field", "build.retry_backoff").
			Build()
	}
	c.Build.RetryBackoff = backoff
	return nil
}
