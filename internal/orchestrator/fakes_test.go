package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/slidebuilder/internal/cache"
	"git.home.luguber.info/inful/slidebuilder/internal/config"
	"git.home.luguber.info/inful/slidebuilder/internal/forge"
	"git.home.luguber.info/inful/slidebuilder/internal/git"
	"git.home.luguber.info/inful/slidebuilder/internal/metrics"
	"git.home.luguber.info/inful/slidebuilder/internal/repository"
	"git.home.luguber.info/inful/slidebuilder/internal/workspace"
)

// fakeSyncer writes files into the working copy instead of talking to a remote.
type fakeSyncer struct {
	mu    sync.Mutex
	fail  map[string]bool
	files map[string]map[string]string
	calls []string
}

func (f *fakeSyncer) Sync(_ context.Context, scope *workspace.Scope, r git.Remote) (git.WorkingCopy, error) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Name)
	fail := f.fail[r.Name]
	files := f.files[r.Name]
	f.mu.Unlock()

	if fail {
		return git.WorkingCopy{}, fmt.Errorf("clone %s: repository not found", r.URL)
	}
	if err := os.MkdirAll(scope.Dir, 0o750); err != nil {
		return git.WorkingCopy{}, err
	}
	for rel, content := range files {
		if err := os.WriteFile(filepath.Join(scope.Dir, rel), []byte(content), 0o600); err != nil {
			return git.WorkingCopy{}, err
		}
	}
	return git.WorkingCopy{Path: scope.Dir, Branch: "main"}, nil
}

type buildCall struct {
	Repo    string
	Slug    string
	DevMode bool
}

// fakeBuilder records calls and fails or delays selected repositories.
type fakeBuilder struct {
	mu    sync.Mutex
	fail  map[string]bool
	delay map[string]time.Duration
	block bool
	calls []buildCall
}

func (f *fakeBuilder) Build(ctx context.Context, _ *workspace.Scope, repo, slug string, devMode bool) error {
	f.mu.Lock()
	f.calls = append(f.calls, buildCall{Repo: repo, Slug: slug, DevMode: devMode})
	fail := f.fail[repo]
	delay := f.delay[repo]
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return fmt.Errorf("exit status 1")
	}
	return nil
}

func (f *fakeBuilder) Calls() []buildCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]buildCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// countingRecorder captures the metrics the orchestrator emits.
type countingRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	results  map[string]int
	outcomes []metrics.RunOutcome
	success  int
	failure  int
}

func (r *countingRecorder) IncRepositoryResult(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]int{}
	}
	r.results[state]++
}

func (r *countingRecorder) IncRunOutcome(o metrics.RunOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *countingRecorder) SetSlides(success, failure int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success, r.failure = success, failure
}

func repos(names ...string) []forge.Repository {
	out := make([]forge.Repository, 0, len(names))
	for _, n := range names {
		out = append(out, forge.Repository{
			Name:        n,
			CloneURL:    "https://example.com/acme/" + n + ".git",
			HTMLURL:     "https://example.com/acme/" + n,
			Description: n + " deck",
		})
	}
	return out
}

func newStore(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.NewStore(config.CacheConfig{Dir: filepath.Join(t.TempDir(), "cache")})
	require.NoError(t, err)
	return s
}

func newFilter(t *testing.T, ignore []string) *repository.Filter {
	t.Helper()
	f, err := repository.NewFilter(ignore)
	require.NoError(t, err)
	return f
}
