package orchestrator

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/slidebuilder/internal/forge"
	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/git"
	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
	"git.home.luguber.info/inful/slidebuilder/internal/metrics"
)

// tracker walks one repository through the state machine.
type tracker struct {
	log   *slog.Logger
	state State
}

func (t *tracker) to(next State) {
	if !t.state.CanTransition(next) {
		t.log.Error("Illegal state transition", "from", t.state, "to", next)
	}
	t.log.Debug("Repository state", "from", t.state, logfields.State(string(next)))
	t.state = next
}

// processRepository never returns an error: every failure ends in a failed slide.
func (o *Orchestrator) processRepository(ctx context.Context, runLog *slog.Logger, repo forge.Repository, opts Options) RepositoryOutcome {
	start := time.Now()
	log := runLog.With(logfields.Repository(repo.Name))
	t := &tracker{log: log, state: StatePending}

	ref := manifest.RepoRef{Name: repo.Name, URL: repo.HTMLURL}
	out := RepositoryOutcome{Repository: repo, Slide: manifest.Resolve(ref, repo.Description, nil)}

	finish := func(state State, err error) RepositoryOutcome {
		t.to(state)
		out.State = state
		out.Err = err
		out.Slide.Build = manifest.BuildInfo{Status: state.Status()}
		out.Duration = time.Since(start)
		o.recorder.IncRepositoryResult(string(state))
		if err != nil {
			log.Error("Repository failed",
				logfields.State(string(state)),
				logfields.Slug(out.Slide.Slug),
				logfields.Error(err))
		} else {
			log.Info("Repository done", logfields.Slug(out.Slide.Slug), logfields.Duration(out.Duration))
		}
		return out
	}

	repoCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		repoCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	scope, err := o.workspaces.Acquire(repoCtx, repo.Name)
	if err != nil {
		return finish(StateSyncFailed, syncFailed(repo, err))
	}
	defer scope.Release()

	t.to(StateSyncing)
	syncStart := time.Now()
	_, err = o.syncer.Sync(repoCtx, scope, git.Remote{Name: repo.Name, URL: repo.CloneURL, DefaultBranch: repo.DefaultBranch})
	o.recorder.ObserveStageDuration(metrics.StageSync, time.Since(syncStart))
	if err != nil {
		return finish(StateSyncFailed, syncFailed(repo, err))
	}

	t.to(StateBuilding)
	override, err := o.store.ReadOverride(repo.Name)
	if err != nil {
		return finish(StateBuildFailed, err)
	}
	out.Slide = manifest.Resolve(ref, repo.Description, override)
	if err := manifest.ValidateSlug(out.Slide.Slug); err != nil {
		return finish(StateBuildFailed, err)
	}

	buildStart := time.Now()
	err = o.builder.Build(repoCtx, scope, repo.Name, out.Slide.Slug, opts.DevMode)
	if !opts.DevMode {
		o.recorder.ObserveStageDuration(metrics.StageBuild, time.Since(buildStart))
	}
	if err != nil {
		return finish(StateBuildFailed, buildFailed(repo, err))
	}
	return finish(StateBuilt, nil)
}

func syncFailed(repo forge.Repository, err error) error {
	if errors.HasKind(err, errors.KindSyncFailed) {
		return err
	}
	b := errors.WrapError(err, errors.CategoryGit, "sync failed").
		WithKind(errors.KindSyncFailed).
		WithContext("repository", repo.Name)
	if stderrors.Is(err, context.DeadlineExceeded) {
		b = b.WithContext("timeout", true)
	}
	return b.Build()
}

func buildFailed(repo forge.Repository, err error) error {
	if errors.HasKind(err, errors.KindBuildFailed) {
		return err
	}
	return errors.WrapError(err, errors.CategoryBuild, "build failed").
		WithKind(errors.KindBuildFailed).
		WithContext("repository", repo.Name).
		Build()
}
