package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/slidebuilder/internal/cache"
	"git.home.luguber.info/inful/slidebuilder/internal/forge"
	"git.home.luguber.info/inful/slidebuilder/internal/git"
	"git.home.luguber.info/inful/slidebuilder/internal/history"
	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
	"git.home.luguber.info/inful/slidebuilder/internal/metrics"
	"git.home.luguber.info/inful/slidebuilder/internal/notify"
	"git.home.luguber.info/inful/slidebuilder/internal/repository"
	"git.home.luguber.info/inful/slidebuilder/internal/workspace"
)

// Syncer brings the working copy held by a scope up to date with its remote.
type Syncer interface {
	Sync(ctx context.Context, scope *workspace.Scope, r git.Remote) (git.WorkingCopy, error)
}

// Builder installs and builds a synced working copy.
type Builder interface {
	Build(ctx context.Context, scope *workspace.Scope, repo, slug string, devMode bool) error
}

// HistoryRecorder persists a summary of each run.
type HistoryRecorder interface {
	RecordRun(ctx context.Context, run history.Run, results []history.RepositoryResult) error
}

// Options parameterize one run.
type Options struct {
	Owner       string
	IsOrg       bool
	DevMode     bool
	Concurrency int
	// Timeout bounds sync and build of a single repository. Zero means no limit.
	Timeout time.Duration
}

// RepositoryOutcome is the final state of one repository.
type RepositoryOutcome struct {
	Repository forge.Repository
	Slide      manifest.SlideResult
	State      State
	Err        error
	Duration   time.Duration
}

// Result is the output of a successful run.
type Result struct {
	RunID        string
	Manifest     *manifest.Manifest
	Repositories []RepositoryOutcome
	Ignored      []IgnoredRepository
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Orchestrator wires the collaborators of a run.
type Orchestrator struct {
	source     forge.Source
	filter     *repository.Filter
	store      *cache.Store
	workspaces *workspace.Manager
	syncer     Syncer
	builder    Builder

	recorder metrics.Recorder
	history  HistoryRecorder
	notifier notify.Publisher
	now      func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithHistory records every run in h.
func WithHistory(h HistoryRecorder) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithNotifier publishes an event after each persisted manifest.
func WithNotifier(p notify.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.notifier = p
		}
	}
}

// WithClock overrides time.Now for the manifest timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. The workspace root is the cache root so working
// copies live at <cache>/<lower(name)>.
func New(source forge.Source, filter *repository.Filter, store *cache.Store, syncer Syncer, builder Builder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:     source,
		filter:     filter,
		store:      store,
		workspaces: workspace.NewManager(store.Root()),
		syncer:     syncer,
		builder:    builder,
		recorder:   metrics.NoopRecorder{},
		notifier:   notify.NoopPublisher{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one batch and returns the persisted manifest.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	runID := uuid.NewString()
	log := slog.With(logfields.RunID(runID), logfields.Owner(opts.Owner))
	started := time.Now()
	res := &Result{RunID: runID, StartedAt: started}

	concurrency := max(opts.Concurrency, 1)
	o.recorder.SetConcurrency(concurrency)
	log.Info("Run started", slog.Bool("dev_mode", opts.DevMode), slog.Int("concurrency", concurrency))

	plan, err := o.Plan(ctx, opts.Owner, opts.IsOrg)
	if err != nil {
		o.finishFailed(ctx, log, res, opts.Owner, err)
		return nil, err
	}
	res.Ignored = plan.Ignored
	log.Info("Repositories selected", logfields.Count(len(plan.Included)), slog.Int("ignored", len(plan.Ignored)))

	outcomes := make([]RepositoryOutcome, len(plan.Included))
	if concurrency == 1 {
		for i, repo := range plan.Included {
			outcomes[i] = o.processRepository(ctx, log, repo, opts)
		}
	} else {
		g := new(errgroup.Group)
		g.SetLimit(concurrency)
		for i, repo := range plan.Included {
			g.Go(func() error {
				outcomes[i] = o.processRepository(ctx, log, repo, opts)
				return nil
			})
		}
		_ = g.Wait()
	}
	res.Repositories = outcomes

	if err := ctx.Err(); err != nil {
		o.finishFailed(ctx, log, res, opts.Owner, fmt.Errorf("run cancelled: %w", err))
		return nil, err
	}

	slides := make([]manifest.SlideResult, len(outcomes))
	for i, oc := range outcomes {
		slides[i] = oc.Slide
	}
	if err := manifest.CheckSlugs(slides); err != nil {
		o.finishFailed(ctx, log, res, opts.Owner, err)
		return nil, err
	}

	m := manifest.New(opts.Owner, o.now(), slides)
	if err := o.store.WriteManifest(m); err != nil {
		o.finishFailed(ctx, log, res, opts.Owner, err)
		return nil, err
	}
	res.Manifest = m
	res.FinishedAt = time.Now()

	success, failure := m.Counts()
	outcome := metrics.OutcomeSuccess
	if failure > 0 {
		outcome = metrics.OutcomePartial
	}
	o.recorder.SetSlides(success, failure)
	o.recorder.IncRunOutcome(outcome)
	o.recorder.ObserveRunDuration(res.FinishedAt.Sub(started))
	o.recordHistory(ctx, log, res, opts.Owner, string(outcome), "")

	if err := o.notifier.PublishManifest(ctx, notify.NewManifestEvent(runID, m)); err != nil {
		log.Warn("Manifest notification failed", logfields.Error(err))
	}

	log.Info("Run finished",
		logfields.Status(string(outcome)),
		slog.Int("success", success),
		slog.Int("failure", failure),
		logfields.Path(o.store.ManifestPath()),
		logfields.Duration(res.FinishedAt.Sub(started)))
	return res, nil
}

func (o *Orchestrator) finishFailed(ctx context.Context, log *slog.Logger, res *Result, owner string, err error) {
	res.FinishedAt = time.Now()
	o.recorder.IncRunOutcome(metrics.OutcomeFailed)
	o.recorder.ObserveRunDuration(res.FinishedAt.Sub(res.StartedAt))
	o.recordHistory(context.WithoutCancel(ctx), log, res, owner, string(metrics.OutcomeFailed), err.Error())
	log.Error("Run failed", logfields.Error(err))
}

func (o *Orchestrator) recordHistory(ctx context.Context, log *slog.Logger, res *Result, owner, outcome, errMsg string) {
	if o.history == nil {
		return
	}
	run := history.Run{
		ID:         res.RunID,
		Owner:      owner,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Outcome:    outcome,
		Error:      errMsg,
	}
	if res.Manifest != nil {
		run.Success, run.Failure = res.Manifest.Counts()
		run.ManifestHash, _ = res.Manifest.Hash()
	}
	results := make([]history.RepositoryResult, 0, len(res.Repositories))
	for _, oc := range res.Repositories {
		r := history.RepositoryResult{
			Repository: oc.Repository.Name,
			Slug:       oc.Slide.Slug,
			State:      string(oc.State),
			Duration:   oc.Duration,
		}
		if oc.Err != nil {
			r.Error = oc.Err.Error()
		}
		results = append(results, r)
	}
	if err := o.history.RecordRun(ctx, run, results); err != nil {
		log.Warn("Failed to record run history", logfields.Error(err))
	}
}
