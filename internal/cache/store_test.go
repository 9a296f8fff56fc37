package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/slidebuilder/internal/config"
	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(config.CacheConfig{Dir: filepath.Join(t.TempDir(), "build", "cache")})
	require.NoError(t, err)
	return s
}

func writeOverride(t *testing.T, s *Store, repo, content string) {
	t.Helper()
	dir := s.WorkingCopyPath(repo)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slide.json"), []byte(content), 0o600))
}

func TestEnsureRootIsIdempotent(t *testing.T) {
	s := newStore(t)
	assert.DirExists(t, s.Root())
	require.NoError(t, s.EnsureRoot())
	require.NoError(t, s.EnsureRoot())
}

func TestLayout(t *testing.T) {
	s := newStore(t)
	assert.Equal(t, filepath.Join(s.Root(), "my-talk"), s.WorkingCopyPath("My-Talk"))
	assert.Equal(t, filepath.Join(s.Root(), "my-talk", "dist"), s.OutputDir("My-Talk"))
	assert.Equal(t, filepath.Join(s.Root(), "info.json"), s.ManifestPath())

	assert.False(t, s.HasWorkingCopy("My-Talk"))
	require.NoError(t, os.MkdirAll(s.WorkingCopyPath("my-talk"), 0o750))
	assert.True(t, s.HasWorkingCopy("My-Talk"))
}

func TestReadOverrideAbsent(t *testing.T) {
	s := newStore(t)
	o, err := s.ReadOverride("nothing")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestReadOverride(t *testing.T) {
	s := newStore(t)
	writeOverride(t, s, "B", `{"slug":"bee","extra":42}`)

	o, err := s.ReadOverride("B")
	require.NoError(t, err)
	require.NotNil(t, o)
	require.NotNil(t, o.Slug)
	assert.Equal(t, "bee", *o.Slug)
	assert.Nil(t, o.Name)
	assert.Nil(t, o.Description)
}

func TestReadOverrideRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"slug": `,
		"wrong type":    `{"slug": 12}`,
		"not an object": `["a"]`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			writeOverride(t, s, "x", content)
			_, err := s.ReadOverride("x")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrOverrideParseFailed)
			assert.True(t, errors.HasKind(err, errors.KindOverrideParseFailed))
		})
	}
}

func TestManifestPersistence(t *testing.T) {
	s := newStore(t)

	m, err := s.ReadManifest()
	require.NoError(t, err)
	assert.Nil(t, m)

	want := manifest.New("owner", time.UnixMilli(42), []manifest.SlideResult{
		{Slug: "a", Name: "A", Repo: manifest.RepoRef{Name: "A", URL: "u"}, Build: manifest.BuildInfo{Status: manifest.StatusSuccess}},
	})
	require.NoError(t, s.WriteManifest(want))

	got, err := s.ReadManifest()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".info.json.", "temporary file left behind")
	}
}

func TestReadManifestCorrupt(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.ManifestPath(), []byte("{"), 0o600))
	_, err := s.ReadManifest()
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}
