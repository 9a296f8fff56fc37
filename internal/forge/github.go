package forge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

const githubPageSize = 100

// GitHubClient lists repositories through the GitHub REST API.
type GitHubClient struct {
	*BaseForge
	pageSize int
}

// NewGitHubClient creates a client. apiURL may point at GitHub Enterprise; empty means github.com.
func NewGitHubClient(apiURL, token string) *GitHubClient {
	if apiURL == "" {
		apiURL = DefaultGitHubAPI
	}
	base := NewBaseForge(&http.Client{Timeout: 30 * time.Second}, apiURL, token)
	base.SetCustomHeader("Accept", "application/vnd.github+json")
	base.SetCustomHeader("X-GitHub-Api-Version", "2022-11-28")
	return &GitHubClient{BaseForge: base, pageSize: githubPageSize}
}

// githubRepo is the subset of the GitHub repository payload we consume.
type githubRepo struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	CloneURL      string  `json:"clone_url"`
	HTMLURL       string  `json:"html_url"`
	DefaultBranch string  `json:"default_branch"`
	Archived      bool    `json:"archived"`
	Fork          bool    `json:"fork"`
}

// ListRepositories lists every repository of an organization or user, in API order.
// Any failure is reported as ErrSourceUnavailable.
func (c *GitHubClient) ListRepositories(ctx context.Context, owner string, isOrg bool) ([]Repository, error) {
	if owner == "" {
		return nil, sourceUnavailable(owner, fmt.Errorf("owner is empty"))
	}
	kind := "users"
	if isOrg {
		kind = "orgs"
	}
	endpoint := fmt.Sprintf("/%s/%s/repos", kind, url.PathEscape(owner))

	repos, err := PaginatedFetchHelper(ctx, endpoint, "page", "per_page", c.pageSize,
		func(ep string) ([]Repository, bool, error) {
			req, err := c.NewRequest(ctx, http.MethodGet, ep)
			if err != nil {
				return nil, false, err
			}
			var page []githubRepo
			if err := c.DoRequest(req, &page); err != nil {
				return nil, false, err
			}
			out := make([]Repository, 0, len(page))
			for _, r := range page {
				out = append(out, r.toRepository())
			}
			return out, true, nil
		})
	if err != nil {
		return nil, sourceUnavailable(owner, err)
	}
	if repos == nil {
		repos = []Repository{}
	}
	slog.Debug("Listed repositories", logfields.Owner(owner), slog.Bool("org", isOrg), logfields.Count(len(repos)))
	return repos, nil
}

func (r githubRepo) toRepository() Repository {
	out := Repository{
		Name:          r.Name,
		CloneURL:      r.CloneURL,
		HTMLURL:       r.HTMLURL,
		DefaultBranch: r.DefaultBranch,
		Archived:      r.Archived,
		Fork:          r.Fork,
	}
	if r.Description != nil {
		out.Description = *r.Description
	}
	return out
}
