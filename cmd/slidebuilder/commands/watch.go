package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/slidebuilder/internal/config"
	"git.home.luguber.info/inful/slidebuilder/internal/daemon"
	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
	"git.home.luguber.info/inful/slidebuilder/internal/metrics"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	RunFlags `embed:""`
	Listen   string `help:"HTTP listen address (overrides watch.listen)"`
	NoReload bool   `name:"no-reload" help:"Do not reload when the configuration file changes"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	w.apply(cfg)

	ctx, cancel := signalContext()
	defer cancel()

	reg, rec := newDaemonRegistry()
	d, err := daemon.New(daemon.Options{
		ConfigPath:  root.Config,
		Config:      cfg,
		Build:       w.buildFunc(rec),
		Gatherer:    reg,
		WatchConfig: !w.NoReload,
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to create daemon").Build()
	}
	slog.Info("Starting watch mode", "listen", cfg.Watch.Listen)
	if err := d.Run(ctx); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "daemon stopped").Build()
	}
	return nil
}

func (w *WatchCmd) apply(cfg *config.Config) {
	w.Apply(cfg)
	if w.Listen != "" {
		cfg.Watch.Listen = w.Listen
	}
}

// buildFunc re-applies the flags so they survive config reloads.
func (w *WatchCmd) buildFunc(rec metrics.Recorder) daemon.BuildFunc {
	return func(ctx context.Context, cfg *config.Config) (*manifest.Manifest, error) {
		run := *cfg
		w.apply(&run)
		app, err := NewApp(&run, AppDeps{Recorder: rec})
		if err != nil {
			return nil, err
		}
		defer app.Close()
		res, _, err := app.Build(ctx)
		if res == nil {
			return nil, err
		}
		return res.Manifest, err
	}
}
