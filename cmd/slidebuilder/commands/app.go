package commands

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/slidebuilder/internal/build"
	"git.home.luguber.info/inful/slidebuilder/internal/cache"
	"git.home.luguber.info/inful/slidebuilder/internal/config"
	"git.home.luguber.info/inful/slidebuilder/internal/forge"
	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/git"
	"git.home.luguber.info/inful/slidebuilder/internal/history"
	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
	"git.home.luguber.info/inful/slidebuilder/internal/metrics"
	"git.home.luguber.info/inful/slidebuilder/internal/notify"
	"git.home.luguber.info/inful/slidebuilder/internal/orchestrator"
	"git.home.luguber.info/inful/slidebuilder/internal/publish"
	"git.home.luguber.info/inful/slidebuilder/internal/repository"
	"git.home.luguber.info/inful/slidebuilder/internal/retry"
)

// App wires the components of one configuration.
type App struct {
	cfg          *config.Config
	store        *cache.Store
	orchestrator *orchestrator.Orchestrator
	publisher    *publish.Publisher
	module       *publish.Module
	bundler      publish.Bundler
	history      *history.SQLiteStore
	notifier     notify.Publisher
}

// AppDeps lets callers replace the collaborators that talk to the outside world.
type AppDeps struct {
	Source   forge.Source
	Recorder metrics.Recorder
}

// NewApp builds the components for cfg. Close releases them.
func NewApp(cfg *config.Config, deps AppDeps) (*App, error) {
	store, err := cache.NewStore(cfg.Cache)
	if err != nil {
		return nil, err
	}
	patterns, err := cfg.IgnorePatterns()
	if err != nil {
		return nil, err
	}

	source := deps.Source
	if source == nil {
		source = forge.NewGitHubClient(cfg.Forge.APIURL, cfg.Forge.Token)
	}
	syncer := git.NewClient().
		WithRetryPolicy(retry.FromConfig(cfg.Build)).
		WithToken(cfg.Forge.Token)

	app := &App{
		cfg:       cfg,
		store:     store,
		publisher: publish.NewPublisher(store, cfg.Output.Dir),
		module:    publish.NewModule(nil),
		bundler:   publish.NewBundler(cfg.Bundle.Command),
	}

	opts := []orchestrator.Option{orchestrator.WithRecorder(deps.Recorder)}
	if cfg.History.Enabled {
		h, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryHistory, "failed to open run history").
				WithContext("path", cfg.History.Path).
				Build()
		}
		app.history = h
		opts = append(opts, orchestrator.WithHistory(h))
	}
	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		app.Close()
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect notifier").Build()
	}
	app.notifier = notifier
	opts = append(opts, orchestrator.WithNotifier(notifier))

	app.orchestrator = orchestrator.New(source, repository.NewFilterFromPatterns(patterns), store, syncer, build.NewRunner(cfg.Build), opts...)
	return app, nil
}

// Close releases the history database and notifier connection. Idempotent.
func (a *App) Close() {
	if a.notifier != nil {
		a.notifier.Close()
		a.notifier = nil
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Warn("Failed to close run history", logfields.Error(err))
		}
		a.history = nil
	}
}

// Store returns the cache store.
func (a *App) Store() *cache.Store { return a.store }

// Plan lists the repositories a run would process.
func (a *App) Plan(ctx context.Context) (orchestrator.Plan, error) {
	return a.orchestrator.Plan(ctx, a.cfg.Owner, a.cfg.OwnerIsOrg())
}

// Prepare runs the orchestrator and writes the module snapshot for the bundler.
func (a *App) Prepare(ctx context.Context) (*orchestrator.Result, error) {
	res, err := a.orchestrator.Run(ctx, orchestrator.Options{
		Owner:       a.cfg.Owner,
		IsOrg:       a.cfg.OwnerIsOrg(),
		DevMode:     a.cfg.DevMode(),
		Concurrency: a.cfg.Build.Concurrency,
		Timeout:     a.cfg.Build.Timeout,
	})
	if err != nil {
		return nil, err
	}
	a.module.Set(res.Manifest)
	if err := a.module.WriteModule(a.cfg.Bundle.ModuleFile); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to write module file").
			WithContext("path", a.cfg.Bundle.ModuleFile).
			Build()
	}
	return res, nil
}

// Build prepares, runs the bundler and publishes.
func (a *App) Build(ctx context.Context) (*orchestrator.Result, publish.Report, error) {
	res, err := a.Prepare(ctx)
	if err != nil {
		return nil, publish.Report{}, err
	}
	if err := a.bundler.Bundle(ctx, a.cfg.Bundle.ModuleFile); err != nil {
		return res, publish.Report{}, err
	}
	if a.cfg.DevMode() {
		slog.Info("Publish skipped in development mode", logfields.Path(a.publisher.OutputRoot()))
		return res, publish.Report{}, nil
	}
	report, err := a.publisher.Publish(ctx, res.Manifest)
	return res, report, err
}

// PublishPersisted publishes the manifest of the previous run.
func (a *App) PublishPersisted(ctx context.Context) (*manifest.Manifest, publish.Report, error) {
	m, err := a.store.ReadManifest()
	if err != nil {
		return nil, publish.Report{}, err
	}
	if m == nil {
		return nil, publish.Report{}, errors.ValidationError(
			fmt.Sprintf("no manifest at %s, run prepare first", a.store.ManifestPath())).
			WithKind(errors.KindPublishFailed).
			Build()
	}
	report, err := a.publisher.Publish(ctx, m)
	return m, report, err
}
