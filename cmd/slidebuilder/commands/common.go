package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/slidebuilder/internal/config"
)

// Global carries shared dependencies for subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config    string `short:"c" help:"Configuration file path" default:"slidebuilder.yaml" env:"SLIDEBUILDER_CONFIG"`
	Verbose   bool   `short:"v" help:"Enable verbose logging"`
	LogFormat string `name:"log-format" help:"Log output format (text|json)" default:"text" enum:"text,json"`

	Build   BuildCmd   `cmd:"" help:"Sync, build and publish every slide repository"`
	Prepare PrepareCmd `cmd:"" help:"Sync and build repositories and write the manifest, without publishing"`
	Publish PublishCmd `cmd:"" help:"Publish the last persisted manifest to the output directory"`
	List    ListCmd    `cmd:"" help:"List the repositories a run would process"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild periodically and serve metrics and the manifest over HTTP"`
	History HistoryCmd `cmd:"" help:"Show recent runs"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// AfterApply runs after flag parsing; setup logging once.
// SLIDEBUILDER_LOG_LEVEL overrides the level unless -v is given.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if env := os.Getenv("SLIDEBUILDER_LOG_LEVEL"); env != "" {
		parsed, err := config.ParseLogLevel(env)
		if err != nil {
			return err
		}
		level = parsed
	}
	if c.Verbose {
		level = slog.LevelDebug
	}
	format, err := config.ParseLogFormat(c.LogFormat)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// RunFlags override configuration values for commands that perform a run.
type RunFlags struct {
	Dev         bool   `help:"Development mode: sync only, skip install and build"`
	Output      string `short:"o" help:"Output directory (overrides output.dir)"`
	Concurrency int    `help:"Repositories processed in parallel (overrides build.concurrency)"`
	Owner       string `help:"Repository owner (overrides owner)"`
}

// Apply writes non-zero flags onto cfg.
func (f RunFlags) Apply(cfg *config.Config) {
	if f.Dev {
		cfg.Build.Mode = config.BuildModeDevelopment
	}
	if f.Output != "" {
		cfg.Output.Dir = f.Output
	}
	if f.Concurrency > 0 {
		cfg.Build.Concurrency = f.Concurrency
	}
	if f.Owner != "" {
		cfg.Owner = f.Owner
	}
}

func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	slog.Debug("Configuration loaded", "path", root.Config, "owner", cfg.Owner)
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stdout, format, args...)
}
