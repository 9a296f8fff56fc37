package forge_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/slidebuilder/internal/forge"
	ferrors "git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/testforge"
)

func TestGitHubListsOrganizationAcrossPages(t *testing.T) {
	tf := testforge.NewTestForge()
	for i := range 130 {
		tf.AddRepository("slides-org", true, forge.Repository{
			Name:     fmt.Sprintf("talk-%03d", i),
			CloneURL: fmt.Sprintf("https://example.com/slides-org/talk-%03d.git", i),
			HTMLURL:  fmt.Sprintf("https://example.com/slides-org/talk-%03d", i),
		})
	}
	srv := tf.Server(t)

	repos, err := forge.NewGitHubClient(srv.URL, "").ListRepositories(context.Background(), "slides-org", true)
	require.NoError(t, err)
	require.Len(t, repos, 130)
	assert.Equal(t, "talk-000", repos[0].Name)
	assert.Equal(t, "talk-129", repos[129].Name)

	assert.Equal(t, []string{
		"/orgs/slides-org/repos?page=1&per_page=100",
		"/orgs/slides-org/repos?page=2&per_page=100",
	}, tf.Requests())
}

func TestGitHubListsUserRepositories(t *testing.T) {
	tf := testforge.NewTestForge()
	tf.AddRepository("alice", false, forge.Repository{
		Name:          "Keynote",
		Description:   "A keynote",
		CloneURL:      "https://example.com/alice/Keynote.git",
		HTMLURL:       "https://example.com/alice/Keynote",
		DefaultBranch: "main",
	})
	tf.AddRepository("alice", false, forge.Repository{Name: "nodesc"})
	tf.RequireToken("sekrit")
	srv := tf.Server(t)

	repos, err := forge.NewGitHubClient(srv.URL, "sekrit").ListRepositories(context.Background(), "alice", false)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, forge.Repository{
		Name:          "Keynote",
		Description:   "A keynote",
		CloneURL:      "https://example.com/alice/Keynote.git",
		HTMLURL:       "https://example.com/alice/Keynote",
		DefaultBranch: "main",
	}, repos[0])
	assert.Empty(t, repos[1].Description, "null description maps to empty string")
}

func TestGitHubFailuresAreSourceUnavailable(t *testing.T) {
	modes := map[string]testforge.FailMode{
		"auth":      testforge.FailModeAuth,
		"not found": testforge.FailModeNotFound,
		"server":    testforge.FailModeServer,
		"malformed": testforge.FailModeMalformed,
	}
	for name, mode := range modes {
		t.Run(name, func(t *testing.T) {
			tf := testforge.NewTestForge()
			tf.AddRepository("o", true, forge.Repository{Name: "a"})
			tf.SetFailMode(mode)
			srv := tf.Server(t)

			_, err := forge.NewGitHubClient(srv.URL, "").ListRepositories(context.Background(), "o", true)
			require.Error(t, err)
			assert.ErrorIs(t, err, forge.ErrSourceUnavailable)
			ce, ok := ferrors.AsClassified(err)
			require.True(t, ok)
			assert.True(t, ce.IsFatal())
		})
	}
}

func TestGitHubUnreachable(t *testing.T) {
	_, err := forge.NewGitHubClient("http://127.0.0.1:1", "").ListRepositories(context.Background(), "o", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, forge.ErrSourceUnavailable)
}

func TestGitHubEmptyOwner(t *testing.T) {
	_, err := forge.NewGitHubClient("http://127.0.0.1:1", "").ListRepositories(context.Background(), "", true)
	assert.ErrorIs(t, err, forge.ErrSourceUnavailable)
}

func TestStaticSource(t *testing.T) {
	src := &forge.StaticSource{Repositories: []forge.Repository{{Name: "b"}, {Name: "a"}}}
	repos, err := src.ListRepositories(context.Background(), "o", true)
	require.NoError(t, err)
	assert.Equal(t, "b", repos[0].Name)
	repos[0].Name = "mutated"
	assert.Equal(t, "b", src.Repositories[0].Name)

	src.Err = fmt.Errorf("offline")
	_, err = src.ListRepositories(context.Background(), "o", true)
	assert.ErrorIs(t, err, forge.ErrSourceUnavailable)
}

func TestPaginatedFetchHelperStopsOnShortPage(t *testing.T) {
	var endpoints []string
	items, err := forge.PaginatedFetchHelper(context.Background(), "/x?type=all", "page", "per_page", 2,
		func(ep string) ([]int, bool, error) {
			endpoints = append(endpoints, ep)
			if len(endpoints) == 1 {
				return []int{1, 2}, true, nil
			}
			return []int{3}, true, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, items)
	assert.Equal(t, []string{"/x?type=all&page=1&per_page=2", "/x?type=all&page=2&per_page=2"}, endpoints)
}
