package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/slidebuilder/internal/config"
	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
	"git.home.luguber.info/inful/slidebuilder/internal/publish"
)

// BuildFunc performs one complete run for cfg and returns its manifest.
type BuildFunc func(ctx context.Context, cfg *config.Config) (*manifest.Manifest, error)

// Options configure a Daemon.
type Options struct {
	ConfigPath string
	Config     *config.Config
	Build      BuildFunc
	Gatherer   prom.Gatherer
	// WatchConfig enables reloading and rebuilding when ConfigPath changes.
	WatchConfig bool
	// ReloadDebounce is the quiet period before a changed config is reloaded. Default 2s.
	ReloadDebounce time.Duration
}

// Daemon schedules runs and serves their results.
type Daemon struct {
	configPath  string
	build       BuildFunc
	gatherer    prom.Gatherer
	watchConfig bool
	debounce    time.Duration
	module      *publish.Module
	startedAt   time.Time

	mu     sync.RWMutex
	cfg    *config.Config
	status Status

	triggers  chan string
	scheduler *Scheduler
	watcher   *ConfigWatcher
	server    *http.Server
}

// New validates opts and creates a daemon. Nothing runs until Run.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Build == nil {
		return nil, fmt.Errorf("build function is required")
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prom.DefaultGatherer
	}
	return &Daemon{
		configPath:  opts.ConfigPath,
		build:       opts.Build,
		gatherer:    gatherer,
		watchConfig: opts.WatchConfig && opts.ConfigPath != "",
		debounce:    opts.ReloadDebounce,
		module:      publish.NewModule(nil),
		cfg:         opts.Config,
		triggers:    make(chan string, 1),
	}, nil
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Module returns the virtual module fed by completed runs.
func (d *Daemon) Module() *publish.Module { return d.module }

// Trigger asks for a run. It never blocks; a pending trigger absorbs new ones.
func (d *Daemon) Trigger(reason string) bool {
	select {
	case d.triggers <- reason:
		slog.Debug("Run requested", "reason", reason)
		return true
	default:
		slog.Debug("Run already pending", "reason", reason)
		return false
	}
}

// Run starts the worker, scheduler, watcher and HTTP server, performs an
// initial run, and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.startedAt = time.Now()
	cfg := d.Config()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched, err := NewScheduler(d)
	if err != nil {
		return err
	}
	if err := sched.Schedule(cfg.Watch.Interval); err != nil {
		return err
	}
	sched.Start()
	d.scheduler = sched
	defer func() {
		if err := sched.Stop(); err != nil {
			slog.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}()

	if d.watchConfig {
		w, err := NewConfigWatcher(d.configPath, d)
		if err != nil {
			return err
		}
		if d.debounce > 0 {
			w.debounceTime = d.debounce
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			return err
		}
		d.watcher = w
		defer w.Stop()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.worker(ctx)
	}()

	serverErr := make(chan error, 1)
	if cfg.Watch.Listen != "" {
		d.server = &http.Server{
			Addr:              cfg.Watch.Listen,
			Handler:           d.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP server listening", "addr", cfg.Watch.Listen)
			if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	d.Trigger("startup")
	slog.Info("Daemon started", logfields.Owner(cfg.Owner), slog.Duration("interval", cfg.Watch.Interval))

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	if d.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown failed", logfields.Error(err))
		}
	}
	cancel()
	wg.Wait()
	slog.Info("Daemon stopped")
	return runErr
}

func (d *Daemon) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-d.triggers:
			d.runOnce(ctx, reason)
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context, reason string) {
	cfg := d.Config()
	d.setRunning(reason)
	start := time.Now()
	slog.Info("Run triggered", "reason", reason, logfields.Owner(cfg.Owner))

	m, err := d.build(ctx, cfg)
	if err != nil {
		slog.Error("Run failed", "reason", reason, logfields.Error(err))
	}
	// A manifest returned with an error was still assembled and persisted.
	if m != nil {
		d.module.Set(m)
	}
	d.finishRun(m, err, time.Since(start))
}

// ReloadConfig swaps in cfg, reschedules when the interval changed and triggers a run.
func (d *Daemon) ReloadConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	d.mu.Lock()
	prev := d.cfg
	d.cfg = cfg
	d.mu.Unlock()

	if prev.Watch.Listen != cfg.Watch.Listen {
		slog.Warn("Listen address changes require a restart", "current", prev.Watch.Listen, "new", cfg.Watch.Listen)
	}
	if d.scheduler != nil && prev.Watch.Interval != cfg.Watch.Interval {
		if err := d.scheduler.Schedule(cfg.Watch.Interval); err != nil {
			return err
		}
	}
	d.Trigger("config_reload")
	return nil
}
