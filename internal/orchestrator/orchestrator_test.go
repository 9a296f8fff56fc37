package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/slidebuilder/internal/build"
	"git.home.luguber.info/inful/slidebuilder/internal/forge"
	ferrors "git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/git"
	"git.home.luguber.info/inful/slidebuilder/internal/history"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
	"git.home.luguber.info/inful/slidebuilder/internal/metrics"
	"git.home.luguber.info/inful/slidebuilder/internal/repository"
	"git.home.luguber.info/inful/slidebuilder/internal/workspace"
)

func slugsAndStatus(m *manifest.Manifest) []string {
	out := make([]string, 0, len(m.Slides))
	for _, s := range m.Slides {
		out = append(out, s.Slug+":"+string(s.Build.Status))
	}
	return out
}

func TestRunOneSlidePerIncludedRepository(t *testing.T) {
	store := newStore(t)
	source := &forge.StaticSource{Repositories: repos("Intro", "index", "slides-template", "Deep-Dive", "Broken")}
	syncer := &fakeSyncer{fail: map[string]bool{"Broken": true}}
	builder := &fakeBuilder{fail: map[string]bool{"Deep-Dive": true}}

	o := New(source, newFilter(t, nil), store, syncer, builder,
		WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }))
	res, err := o.Run(context.Background(), Options{Owner: "acme", IsOrg: true})
	require.NoError(t, err)

	m := res.Manifest
	assert.Equal(t, "acme", m.Owner)
	assert.EqualValues(t, 1_700_000_000_000, m.Generated)
	assert.Equal(t, []string{"intro:success", "deep-dive:failure", "broken:failure"}, slugsAndStatus(m))
	assert.Len(t, res.Ignored, 2)
	assert.Equal(t, repository.ReasonExactMatch, res.Ignored[0].Reason)
	assert.Equal(t, repository.ReasonPatternMatch, res.Ignored[1].Reason)

	assert.Equal(t, StateBuilt, res.Repositories[0].State)
	assert.Equal(t, StateBuildFailed, res.Repositories[1].State)
	assert.ErrorIs(t, res.Repositories[1].Err, build.ErrBuildFailed)
	assert.Equal(t, StateSyncFailed, res.Repositories[2].State)
	assert.ErrorIs(t, res.Repositories[2].Err, git.ErrSyncFailed)

	persisted, err := store.ReadManifest()
	require.NoError(t, err)
	assert.Equal(t, m, persisted)

	intro := m.Slides[0]
	assert.Equal(t, "Intro", intro.Name)
	assert.Equal(t, "Intro deck", intro.Description)
	assert.Equal(t, manifest.RepoRef{Name: "Intro", URL: "https://example.com/acme/Intro"}, intro.Repo)
}

func TestRunSyncFailureIsIsolated(t *testing.T) {
	source := &forge.StaticSource{Repositories: repos("first", "second", "third")}
	syncer := &fakeSyncer{fail: map[string]bool{"first": true}}
	builder := &fakeBuilder{}

	res, err := New(source, newFilter(t, []string{}), newStore(t), syncer, builder).
		Run(context.Background(), Options{Owner: "acme"})
	require.NoError(t, err)

	assert.Equal(t, []string{"first:failure", "second:success", "third:success"}, slugsAndStatus(res.Manifest))
	assert.Equal(t, []string{"first", "second", "third"}, syncer.calls)
	calls := builder.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "second", calls[0].Repo)
}

func TestRunDevModePassesFlagAndSucceeds(t *testing.T) {
	source := &forge.StaticSource{Repositories: repos("a", "b")}
	syncer := &fakeSyncer{fail: map[string]bool{"b": true}}
	builder := &fakeBuilder{fail: map[string]bool{"a": true}}

	res, err := New(source, newFilter(t, []string{}), newStore(t), syncer, &devAwareBuilder{builder}).
		Run(context.Background(), Options{Owner: "acme", DevMode: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:success", "b:failure"}, slugsAndStatus(res.Manifest))
	for _, c := range builder.Calls() {
		assert.True(t, c.DevMode)
	}
}

// devAwareBuilder skips the wrapped builder in dev mode, like build.Runner.
type devAwareBuilder struct{ *fakeBuilder }

func (d *devAwareBuilder) Build(ctx context.Context, scope *workspace.Scope, repo, slug string, devMode bool) error {
	if devMode {
		d.mu.Lock()
		d.calls = append(d.calls, buildCall{Repo: repo, Slug: slug, DevMode: true})
		d.mu.Unlock()
		return nil
	}
	return d.fakeBuilder.Build(ctx, scope, repo, slug, devMode)
}

func TestRunHonorsOverride(t *testing.T) {
	source := &forge.StaticSource{Repositories: repos("Talk", "Other")}
	syncer := &fakeSyncer{files: map[string]map[string]string{
		"Talk":  {"slide.json": `{"slug":"custom","name":"My Talk","description":null}`},
		"Other": {"slide.json": `{"description":"from override","extra":42}`},
	}}
	builder := &fakeBuilder{}

	res, err := New(source, newFilter(t, []string{}), newStore(t), syncer, builder).
		Run(context.Background(), Options{Owner: "acme"})
	require.NoError(t, err)

	talk, other := res.Manifest.Slides[0], res.Manifest.Slides[1]
	assert.Equal(t, "custom", talk.Slug)
	assert.Equal(t, "My Talk", talk.Name)
	assert.Equal(t, "Talk deck", talk.Description)
	assert.Equal(t, "other", other.Slug)
	assert.Equal(t, "from override", other.Description)
	assert.Equal(t, "custom", builder.Calls()[0].Slug)
}

func TestRunOverrideParseFailure(t *testing.T) {
	source := &forge.StaticSource{Repositories: repos("bad", "good")}
	syncer := &fakeSyncer{files: map[string]map[string]string{
		"bad": {"slide.json": `{"slug": `},
	}}
	builder := &fakeBuilder{}

	res, err := New(source, newFilter(t, []string{}), newStore(t), syncer, builder).
		Run(context.Background(), Options{Owner: "acme"})
	require.NoError(t, err)

	assert.Equal(t, []string{"bad:failure", "good:success"}, slugsAndStatus(res.Manifest))
	assert.True(t, ferrors.HasKind(res.Repositories[0].Err, ferrors.KindOverrideParseFailed))
	require.Len(t, builder.Calls(), 1)
	assert.Equal(t, "good", builder.Calls()[0].Repo)
}

func TestRunInvalidOverrideSlug(t *testing.T) {
	source := &forge.StaticSource{Repositories: repos("escape")}
	syncer := &fakeSyncer{files: map[string]map[string]string{
		"escape": {"slide.json": `{"slug":"../etc"}`},
	}}

	res, err := New(source, newFilter(t, []string{}), newStore(t), syncer, &fakeBuilder{}).
		Run(context.Background(), Options{Owner: "acme"})
	require.NoError(t, err)
	assert.Equal(t, StateBuildFailed, res.Repositories[0].State)
	assert.ErrorIs(t, res.Repositories[0].Err, manifest.ErrInvalidSlug)
}

func TestRunSlugCollisionAborts(t *testing.T) {
	store := newStore(t)
	source := &forge.StaticSource{Repositories: repos("one", "two")}
	syncer := &fakeSyncer{files: map[string]map[string]string{
		"two": {"slide.json": `{"slug":"one"}`},
	}}
	hist, err := history.Open(":memory:")
	require.NoError(t, err)
	defer hist.Close()

	_, err = New(source, newFilter(t, []string{}), store, syncer, &fakeBuilder{}, WithHistory(hist)).
		Run(context.Background(), Options{Owner: "acme"})
	require.Error(t, err)
	assert.ErrorIs(t, err, manifest.ErrSlugCollision)
	assert.Contains(t, err.Error(), `"one"`)

	m, err := store.ReadManifest()
	require.NoError(t, err)
	assert.Nil(t, m, "no manifest is persisted on collision")

	runs, err := hist.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, string(metrics.OutcomeFailed), runs[0].Outcome)
}

func TestRunSourceUnavailableIsFatal(t *testing.T) {
	source := &forge.StaticSource{Err: errors.New("401 bad credentials")}
	syncer := &fakeSyncer{}
	rec := &countingRecorder{}

	_, err := New(source, newFilter(t, nil), newStore(t), syncer, &fakeBuilder{}, WithRecorder(rec)).
		Run(context.Background(), Options{Owner: "acme"})
	require.Error(t, err)
	assert.ErrorIs(t, err, forge.ErrSourceUnavailable)
	assert.Empty(t, syncer.calls)
	assert.Equal(t, []metrics.RunOutcome{metrics.OutcomeFailed}, rec.outcomes)
}

func TestRunConcurrentKeepsListingOrder(t *testing.T) {
	names := []string{"r0", "r1", "r2", "r3", "r4", "r5"}
	delay := map[string]time.Duration{}
	for i, n := range names {
		delay[n] = time.Duration(len(names)-i) * 15 * time.Millisecond
	}
	builder := &fakeBuilder{delay: delay, fail: map[string]bool{"r2": true}}

	res, err := New(&forge.StaticSource{Repositories: repos(names...)}, newFilter(t, []string{}), newStore(t), &fakeSyncer{}, builder).
		Run(context.Background(), Options{Owner: "acme", Concurrency: 4})
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"r0:success", "r1:success", "r2:failure", "r3:success", "r4:success", "r5:success"},
		slugsAndStatus(res.Manifest))
	assert.Len(t, builder.Calls(), len(names))
}

func TestRunTimeoutBecomesBuildFailed(t *testing.T) {
	builder := &fakeBuilder{block: true}
	res, err := New(&forge.StaticSource{Repositories: repos("slow")}, newFilter(t, []string{}), newStore(t), &fakeSyncer{}, builder).
		Run(context.Background(), Options{Owner: "acme", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	oc := res.Repositories[0]
	assert.Equal(t, StateBuildFailed, oc.State)
	assert.ErrorIs(t, oc.Err, build.ErrBuildFailed)
	assert.ErrorIs(t, oc.Err, context.DeadlineExceeded)
}

func TestRunCancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&forge.StaticSource{Repositories: repos("a")}, newFilter(t, []string{}), newStore(t), &fakeSyncer{}, &fakeBuilder{}).
		Run(ctx, Options{Owner: "acme"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRecordsMetricsAndHistory(t *testing.T) {
	hist, err := history.Open(":memory:")
	require.NoError(t, err)
	defer hist.Close()
	rec := &countingRecorder{}

	source := &forge.StaticSource{Repositories: repos("a", "b", "c")}
	syncer := &fakeSyncer{fail: map[string]bool{"c": true}}
	builder := &fakeBuilder{fail: map[string]bool{"b": true}}

	res, err := New(source, newFilter(t, []string{}), newStore(t), syncer, builder,
		WithRecorder(rec), WithHistory(hist)).Run(context.Background(), Options{Owner: "acme"})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"built": 1, "build_failed": 1, "sync_failed": 1}, rec.results)
	assert.Equal(t, []metrics.RunOutcome{metrics.OutcomePartial}, rec.outcomes)
	assert.Equal(t, 1, rec.success)
	assert.Equal(t, 2, rec.failure)

	runs, err := hist.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, "partial", runs[0].Outcome)
	assert.Equal(t, 1, runs[0].Success)
	assert.Equal(t, 2, runs[0].Failure)
	assert.NotEmpty(t, runs[0].ManifestHash)

	results, err := hist.Results(context.Background(), res.RunID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "build_failed", results[1].State)
	assert.NotEmpty(t, results[2].Error)
}

func TestPlanPreservesOrder(t *testing.T) {
	o := New(&forge.StaticSource{Repositories: repos("z", "index", "a", "m")}, newFilter(t, nil), newStore(t), &fakeSyncer{}, &fakeBuilder{})
	plan, err := o.Plan(context.Background(), "acme", true)
	require.NoError(t, err)

	var names []string
	for _, r := range plan.Included {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"z", "a", "m"}, names)
	require.Len(t, plan.Ignored, 1)
	assert.Equal(t, "index", plan.Ignored[0].Repository.Name)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StatePending.CanTransition(StateSyncing))
	assert.True(t, StateSyncing.CanTransition(StateSyncFailed))
	assert.True(t, StateSyncing.CanTransition(StateBuilding))
	assert.True(t, StateBuilding.CanTransition(StateBuilt))
	assert.False(t, StatePending.CanTransition(StateBuilt))
	assert.False(t, StateBuilt.CanTransition(StateBuilding))

	assert.True(t, StateBuilt.Terminal())
	assert.False(t, StateBuilding.Terminal())
	assert.Equal(t, manifest.StatusSuccess, StateBuilt.Status())
	assert.Equal(t, manifest.StatusFailure, StateSyncFailed.Status())
	assert.Equal(t, manifest.StatusFailure, StateBuildFailed.Status())
}
