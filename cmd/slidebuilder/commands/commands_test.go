package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/slidebuilder/internal/config"
	"git.home.luguber.info/inful/slidebuilder/internal/forge"
	ferrors "git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/history"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
	"git.home.luguber.info/inful/slidebuilder/internal/testforge"
	helpers "git.home.luguber.info/inful/slidebuilder/internal/testutil/testutils"
)

// "$$" survives env expansion on load and reaches the shell as "$".
const buildScript = `test ! -f fail-build && mkdir -p dist && echo $$SLIDE_BASE > dist/index.html`

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	doc := fmt.Sprintf(`
owner: acme
is_org: true
forge:
  api_url: %q
cache:
  dir: %q
build:
  install_command: ["true"]
  build_command: ["sh", "-c", %q]
output:
  dir: %q
bundle:
  module_file: %q
history:
  enabled: true
  path: %q
`, apiURL,
		filepath.Join(dir, "cache"),
		buildScript,
		filepath.Join(dir, "site"),
		filepath.Join(dir, "module", "slides.json"),
		filepath.Join(dir, "history.db"))
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func TestRunFlagsApply(t *testing.T) {
	cfg := config.Default()
	cfg.Owner = "acme"
	RunFlags{}.Apply(cfg)
	assert.False(t, cfg.DevMode())
	assert.Equal(t, "acme", cfg.Owner)

	RunFlags{Dev: true, Output: "out", Concurrency: 3, Owner: "someone"}.Apply(cfg)
	assert.True(t, cfg.DevMode())
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, 3, cfg.Build.Concurrency)
	assert.Equal(t, "someone", cfg.Owner)
}

func TestAppBuildAgainstForgeEmulator(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	a := helpers.NewGitRemote(t, "A")
	a.Commit("init", map[string]string{"slides.md": "# A"})
	b := helpers.NewGitRemote(t, "B")
	b.Commit("init", map[string]string{"slide.json": `{"slug":"bee"}`, "fail-build": ""})

	tf := testforge.NewTestForge()
	tf.AddRepository("acme", true, forge.Repository{Name: "A", CloneURL: a.URL, HTMLURL: "https://example.com/acme/A"})
	tf.AddRepository("acme", true, forge.Repository{Name: "B", CloneURL: b.URL, HTMLURL: "https://example.com/acme/B"})
	tf.AddRepository("acme", true, forge.Repository{Name: "index", CloneURL: "unused"})
	srv := tf.Server(t)

	cfg := testConfig(t, srv.URL)
	app, err := NewApp(cfg, AppDeps{})
	require.NoError(t, err)
	defer app.Close()

	plan, err := app.Plan(context.Background())
	require.NoError(t, err)
	assert.Len(t, plan.Included, 2)
	assert.Len(t, plan.Ignored, 1)

	res, report, err := app.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Manifest.Slides, 2)
	assert.Equal(t, "a", res.Manifest.Slides[0].Slug)
	assert.Equal(t, manifest.StatusSuccess, res.Manifest.Slides[0].Build.Status)
	assert.Equal(t, "bee", res.Manifest.Slides[1].Slug)
	assert.Equal(t, manifest.StatusFailure, res.Manifest.Slides[1].Build.Status)
	assert.Equal(t, []string{"a"}, report.Published)

	helpers.NewFileAssertions(t, cfg.Output.Dir).
		AssertFileContains("a/index.html", "/a/").
		AssertMissing("bee")

	data, err := os.ReadFile(cfg.Bundle.ModuleFile)
	require.NoError(t, err)
	snapshot, err := manifest.FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, res.Manifest.Slides, snapshot.Slides)

	app.Close()
	h, err := history.Open(cfg.History.Path)
	require.NoError(t, err)
	defer h.Close()
	runs, err := h.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
}

func TestPublishPersistedRepublishes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	a := helpers.NewGitRemote(t, "deck")
	a.Commit("init", map[string]string{"slides.md": "# deck"})

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.History.Enabled = false
	app, err := NewApp(cfg, AppDeps{Source: &forge.StaticSource{Repositories: []forge.Repository{{Name: "deck", CloneURL: a.URL}}}})
	require.NoError(t, err)
	defer app.Close()

	_, _, err = app.Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(cfg.Output.Dir))

	m, report, err := app.PublishPersisted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acme", m.Owner)
	assert.Equal(t, []string{"deck"}, report.Published)
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "deck", "index.html"))
}

func TestPublishPersistedWithoutManifest(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	app, err := NewApp(cfg, AppDeps{Source: &forge.StaticSource{}})
	require.NoError(t, err)
	defer app.Close()

	_, _, err = app.PublishPersisted(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasKind(err, ferrors.KindPublishFailed))
	assert.Contains(t, err.Error(), "run prepare first")
}

func TestAppPlanSourceUnavailable(t *testing.T) {
	tf := testforge.NewTestForge()
	tf.SetFailMode(testforge.FailModeAuth)
	srv := tf.Server(t)

	app, err := NewApp(testConfig(t, srv.URL), AppDeps{})
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Prepare(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, forge.ErrSourceUnavailable)
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slidebuilder.yaml")
	require.NoError(t, RunInit(path, false))
	assert.FileExists(t, path)
	assert.Error(t, RunInit(path, false))
	assert.NoError(t, RunInit(path, true))
}

func TestAppBuildDevModeSkipsPublish(t *testing.T) {
	a := helpers.NewGitRemote(t, "deck")
	a.Commit("init", map[string]string{"slides.md": "# deck"})

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.History.Enabled = false
	RunFlags{Dev: true}.Apply(cfg)
	app, err := NewApp(cfg, AppDeps{Source: &forge.StaticSource{Repositories: []forge.Repository{{Name: "deck", CloneURL: a.URL}}}})
	require.NoError(t, err)
	defer app.Close()

	res, report, err := app.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Manifest.Slides, 1)
	assert.Equal(t, manifest.StatusSuccess, res.Manifest.Slides[0].Build.Status)
	assert.Empty(t, report.Published)
	assert.Empty(t, report.Missing)
	assert.NoDirExists(t, cfg.Output.Dir)
	assert.FileExists(t, cfg.Bundle.ModuleFile)
}

func TestWatchBuildFuncDevModeReturnsManifest(t *testing.T) {
	a := helpers.NewGitRemote(t, "deck")
	a.Commit("init", map[string]string{"slides.md": "# deck"})
	srvForge := testforge.NewTestForge()
	srvForge.AddRepository("acme", true, forge.Repository{Name: "deck", CloneURL: a.URL})
	srv := srvForge.Server(t)

	cfg := testConfig(t, srv.URL)
	cfg.History.Enabled = false
	w := &WatchCmd{RunFlags: RunFlags{Dev: true}}

	m, err := w.buildFunc(nil)(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Len(t, m.Slides, 1)
	assert.Equal(t, "deck", m.Slides[0].Slug)
	assert.False(t, cfg.DevMode(), "flags apply to a per-run copy")
}

func TestHistoryCmdRender(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	a := helpers.NewGitRemote(t, "deck")
	a.Commit("init", map[string]string{"slides.md": "# deck"})

	cfg := testConfig(t, "http://127.0.0.1:1")
	app, err := NewApp(cfg, AppDeps{Source: &forge.StaticSource{Repositories: []forge.Repository{{Name: "deck", CloneURL: a.URL}}}})
	require.NoError(t, err)
	res, _, err := app.Build(context.Background())
	require.NoError(t, err)
	app.Close()

	store, err := history.Open(cfg.History.Path)
	require.NoError(t, err)
	defer store.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var runs strings.Builder
	require.NoError(t, (&HistoryCmd{Limit: 5}).render(ctx, store, &runs))
	lines := strings.Split(strings.TrimSpace(runs.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "RUN"))
	assert.Contains(t, lines[1], res.RunID)

	var results strings.Builder
	require.NoError(t, (&HistoryCmd{RunID: res.RunID}).render(ctx, store, &results))
	assert.Contains(t, results.String(), "REPOSITORY")
	assert.Contains(t, results.String(), "deck")
	assert.Contains(t, results.String(), "built")
}
