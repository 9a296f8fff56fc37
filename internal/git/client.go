package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
	"git.home.luguber.info/inful/slidebuilder/internal/retry"
	"git.home.luguber.info/inful/slidebuilder/internal/workspace"
)

// ErrSyncFailed matches any failure to bring a working copy up to date.
var ErrSyncFailed = errors.GitError("sync failed").WithKind(errors.KindSyncFailed).Build()

// Remote describes what to sync.
type Remote struct {
	Name          string
	URL           string
	DefaultBranch string // hint from the listing API, may be empty
}

// WorkingCopy is the state of a working copy after a successful sync.
type WorkingCopy struct {
	Path   string
	Branch string
	Commit string
	Cloned bool
}

// Client performs clone and update operations.
type Client struct {
	policy retry.Policy
	token  string
}

// NewClient creates a client that does not retry.
func NewClient() *Client { return &Client{policy: retry.DefaultPolicy()} }

// WithRetryPolicy sets the retry policy for transient failures (fluent helper).
func (c *Client) WithRetryPolicy(p retry.Policy) *Client { c.policy = p; return c }

// WithToken sets the token used for http(s) remotes (fluent helper).
func (c *Client) WithToken(token string) *Client { c.token = token; return c }

// Sync clones or updates the working copy held by scope.
// Every failure is returned as ErrSyncFailed wrapping the cause.
func (c *Client) Sync(ctx context.Context, scope *workspace.Scope, r Remote) (WorkingCopy, error) {
	start := time.Now()
	var wc WorkingCopy
	err := retry.Do(ctx, c.policy, "sync "+r.Name, classifyAttempt, func(ctx context.Context) error {
		var err error
		wc, err = c.syncOnce(ctx, scope.Dir, r)
		return err
	})
	if err != nil {
		return WorkingCopy{}, errors.WrapError(err, errors.CategoryGit, "sync failed").
			WithKind(errors.KindSyncFailed).
			WithContext("repository", r.Name).
			WithContext("url", r.URL).
			Build()
	}
	slog.Info("Repository synced",
		logfields.Repository(r.Name),
		logfields.Branch(wc.Branch),
		logfields.Commit(wc.Commit),
		slog.Bool("cloned", wc.Cloned),
		logfields.Duration(time.Since(start)))
	return wc, nil
}

func (c *Client) syncOnce(ctx context.Context, path string, r Remote) (WorkingCopy, error) {
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		slog.Debug("Working copy missing, cloning", logfields.Repository(r.Name), logfields.Path(path))
		return c.clone(ctx, path, r)
	}
	return c.update(ctx, path, r)
}

func (c *Client) clone(ctx context.Context, path string, r Remote) (WorkingCopy, error) {
	// A partial directory from an interrupted clone would make PlainClone fail.
	if err := os.RemoveAll(path); err != nil {
		return WorkingCopy{}, fmt.Errorf("failed to remove existing directory: %w", err)
	}
	auth, err := c.authFor(r.URL)
	if err != nil {
		return WorkingCopy{}, err
	}
	repository, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:  r.URL,
		Auth: auth,
		Tags: git.NoTags,
	})
	if err != nil {
		_ = os.RemoveAll(path)
		return WorkingCopy{}, classifyCloneError(r.URL, err)
	}
	wc := WorkingCopy{Path: path, Cloned: true}
	if head, herr := repository.Head(); herr == nil {
		wc.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			wc.Branch = head.Name().Short()
		}
	}
	return wc, nil
}

func (c *Client) authFor(url string) (transport.AuthMethod, error) {
	return tokenAuth(url, c.token)
}
