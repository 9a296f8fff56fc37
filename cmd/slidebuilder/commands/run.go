package commands

import (
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/slidebuilder/internal/config"
	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
	"git.home.luguber.info/inful/slidebuilder/internal/metrics"
	"git.home.luguber.info/inful/slidebuilder/internal/orchestrator"
	"git.home.luguber.info/inful/slidebuilder/internal/publish"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	RunFlags `embed:""`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	b.Apply(cfg)

	ctx, cancel := signalContext()
	defer cancel()

	reg, rec := newRegistry()
	app, err := NewApp(cfg, AppDeps{Recorder: rec})
	if err != nil {
		return err
	}
	defer app.Close()

	res, report, err := app.Build(ctx)
	writeMetrics(cfg, reg)
	if res != nil {
		printSummary(res)
	}
	if err != nil {
		return err
	}
	printf("Published %d slide(s) to %s\n", len(report.Published), cfg.Output.Dir)
	return nil
}

// PrepareCmd implements the 'prepare' command.
type PrepareCmd struct {
	RunFlags `embed:""`
}

func (p *PrepareCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	p.Apply(cfg)

	ctx, cancel := signalContext()
	defer cancel()

	reg, rec := newRegistry()
	app, err := NewApp(cfg, AppDeps{Recorder: rec})
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Prepare(ctx)
	writeMetrics(cfg, reg)
	if err != nil {
		return err
	}
	printSummary(res)
	printf("Manifest written to %s, module to %s\n", app.Store().ManifestPath(), cfg.Bundle.ModuleFile)
	return nil
}

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	Output string `short:"o" help:"Output directory (overrides output.dir)"`
}

func (p *PublishCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	RunFlags{Output: p.Output}.Apply(cfg)

	ctx, cancel := signalContext()
	defer cancel()

	app, err := NewApp(cfg, AppDeps{})
	if err != nil {
		return err
	}
	defer app.Close()

	_, report, err := app.PublishPersisted(ctx)
	printReport(report)
	return err
}

func newRegistry() (*prom.Registry, metrics.Recorder) {
	reg := prom.NewRegistry()
	return reg, metrics.NewPrometheusRecorder(reg)
}

func newDaemonRegistry() (*prom.Registry, metrics.Recorder) {
	reg, rec := newRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, rec
}

func writeMetrics(cfg *config.Config, reg *prom.Registry) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(reg, cfg.Metrics.Textfile); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Error(err))
	}
}

func printSummary(res *orchestrator.Result) {
	for _, oc := range res.Repositories {
		printf("  %-12s %-30s %s\n", oc.State, oc.Repository.Name, oc.Slide.Slug)
	}
	if res.Manifest != nil {
		success, failure := res.Manifest.Counts()
		printf("%d succeeded, %d failed, %d ignored (run %s)\n", success, failure, len(res.Ignored), res.RunID)
	}
}

func printReport(r publish.Report) {
	for _, slug := range r.Published {
		printf("  published %s\n", slug)
	}
	for _, slug := range r.Skipped {
		printf("  skipped   %s (build failed)\n", slug)
	}
	for _, slug := range r.Missing {
		printf("  missing   %s (no build output)\n", slug)
	}
}
