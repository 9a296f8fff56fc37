package publish

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/slidebuilder/internal/cache"
	"git.home.luguber.info/inful/slidebuilder/internal/config"
	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
)

func slide(name, slug string, status manifest.Status) manifest.SlideResult {
	return manifest.SlideResult{
		Slug:  slug,
		Name:  name,
		Repo:  manifest.RepoRef{Name: name, URL: "https://example.com/" + name},
		Build: manifest.BuildInfo{Status: status},
	}
}

func newStore(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.NewStore(config.CacheConfig{Dir: filepath.Join(t.TempDir(), "cache")})
	require.NoError(t, err)
	return s
}

func writeDist(t *testing.T, s *cache.Store, repo string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(s.OutputDir(repo), rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func TestVirtualModuleResolution(t *testing.T) {
	m := manifest.New("acme", time.UnixMilli(42), []manifest.SlideResult{slide("A", "a", manifest.StatusSuccess)})
	mod := NewModule(m)

	id, ok := mod.ResolveID(VirtualID)
	require.True(t, ok)
	assert.Equal(t, ResolvedVirtualID, id)

	for _, other := range []string{"virtual:slides/x", "Virtual:slides", "slides", ResolvedVirtualID, ""} {
		_, ok := mod.ResolveID(other)
		assert.False(t, ok, other)
	}

	data, ok, err := mod.Load(id)
	require.NoError(t, err)
	require.True(t, ok)
	decoded, err := manifest.FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)

	_, ok, err = mod.Load("virtual:other")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestVirtualModuleWithoutManifest(t *testing.T) {
	mod := NewModule(nil)
	_, ok, err := mod.Load(ResolvedVirtualID)
	assert.True(t, ok)
	assert.Error(t, err)
	assert.Error(t, mod.WriteModule(filepath.Join(t.TempDir(), "slides.json")))
}

func TestWriteModuleTracksLatestManifest(t *testing.T) {
	mod := NewModule(manifest.New("acme", time.UnixMilli(1), nil))
	mod.Set(manifest.New("acme", time.UnixMilli(2), []manifest.SlideResult{slide("B", "bee", manifest.StatusFailure)}))

	path := filepath.Join(t.TempDir(), "nested", "slides.json")
	require.NoError(t, mod.WriteModule(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	decoded, err := manifest.FromJSON(data)
	require.NoError(t, err)
	assert.EqualValues(t, 2, decoded.Generated)
	require.Len(t, decoded.Slides, 1)
	assert.Equal(t, "bee", decoded.Slides[0].Slug)
}

func TestPublishCopiesOnlySuccessfulSlides(t *testing.T) {
	store := newStore(t)
	out := filepath.Join(t.TempDir(), "dist")
	writeDist(t, store, "A", map[string]string{"index.html": "<h1>A</h1>", "assets/app.js": "console.log(1)"})
	writeDist(t, store, "B", map[string]string{"index.html": "<h1>B</h1>"})

	stale := filepath.Join(out, "a", "old.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o750))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	m := manifest.New("acme", time.Now(), []manifest.SlideResult{
		slide("A", "a", manifest.StatusSuccess),
		slide("B", "bee", manifest.StatusFailure),
	})
	report, err := NewPublisher(store, out).Publish(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, report.Published)
	assert.Equal(t, []string{"bee"}, report.Skipped)
	assert.FileExists(t, filepath.Join(out, "a", "index.html"))
	assert.FileExists(t, filepath.Join(out, "a", "assets", "app.js"))
	assert.NoFileExists(t, stale)
	assert.NoDirExists(t, filepath.Join(out, "bee"))
}

func TestPublishReportsMissingOutputAfterCopyingOthers(t *testing.T) {
	store := newStore(t)
	out := filepath.Join(t.TempDir(), "dist")
	writeDist(t, store, "C", map[string]string{"index.html": "c"})

	m := manifest.New("acme", time.Now(), []manifest.SlideResult{
		slide("A", "a", manifest.StatusSuccess),
		slide("C", "c", manifest.StatusSuccess),
	})
	report, err := NewPublisher(store, out).Publish(context.Background(), m)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.Equal(t, []string{"a"}, report.Missing)
	assert.Equal(t, []string{"c"}, report.Published)
	assert.FileExists(t, filepath.Join(out, "c", "index.html"))
}

func TestPublishRejectsSlugCollision(t *testing.T) {
	store := newStore(t)
	m := manifest.New("acme", time.Now(), []manifest.SlideResult{
		slide("A", "same", manifest.StatusSuccess),
		slide("B", "same", manifest.StatusSuccess),
	})
	_, err := NewPublisher(store, t.TempDir()).Publish(context.Background(), m)
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindSlugCollision))
}

func TestCopyDirPreservesModes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes")
	}
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "run.sh"), []byte("#!/bin/sh\n"), 0o755))
	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyDir(src, dst))

	fi, err := os.Stat(filepath.Join(dst, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), fi.Mode().Perm())
}

func TestNewBundler(t *testing.T) {
	assert.IsType(t, NoopBundler{}, NewBundler(nil))
	assert.IsType(t, &CommandBundler{}, NewBundler([]string{"true"}))
}

func TestCommandBundlerSetsModuleEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	dir := t.TempDir()
	b := &CommandBundler{Command: []string{"sh", "-c", `printf %s "$SLIDES_MODULE" > seen.txt`}, Dir: dir}
	require.NoError(t, b.Bundle(context.Background(), "/tmp/slides.json"))

	data, err := os.ReadFile(filepath.Join(dir, "seen.txt"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/slides.json", string(data))
}

func TestCommandBundlerFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	b := &CommandBundler{Command: []string{"sh", "-c", "echo broken >&2; exit 3"}}
	err := b.Bundle(context.Background(), "module.json")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryBuild))
}
