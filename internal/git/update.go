package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
)

const fallbackBranch = "main"

func (c *Client) update(ctx context.Context, path string, r Remote) (WorkingCopy, error) {
	repository, err := git.PlainOpen(path)
	if err != nil {
		return WorkingCopy{}, fmt.Errorf("open repo: %w", err)
	}
	wt, err := repository.Worktree()
	if err != nil {
		return WorkingCopy{}, fmt.Errorf("worktree: %w", err)
	}
	auth, err := c.authFor(r.URL)
	if err != nil {
		return WorkingCopy{}, err
	}
	slog.Debug("Updating repository", logfields.Repository(r.Name), logfields.Path(path))

	if err := fetchOrigin(ctx, repository, auth); err != nil {
		return WorkingCopy{}, classifyFetchError(r.URL, err)
	}

	branch := resolveTargetBranch(ctx, repository, auth, r)

	remoteRef, err := checkoutBranch(repository, wt, branch)
	if err != nil {
		return WorkingCopy{}, err
	}
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return WorkingCopy{}, fmt.Errorf("hard reset: %w", err)
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		slog.Warn("Clean untracked failed", logfields.Repository(r.Name), logfields.Error(err))
	}
	return WorkingCopy{Path: path, Branch: branch, Commit: remoteRef.Hash().String()}, nil
}

// fetchOrigin fetches every remote branch, forcing and pruning remote tracking refs.
func fetchOrigin(ctx context.Context, repository *git.Repository, auth transport.AuthMethod) error {
	err := repository.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.NoTags,
		RefSpecs:   []ggitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Auth:       auth,
		Force:      true,
		Prune:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch: %w", err)
	}
	return nil
}

// resolveTargetBranch picks the branch the working copy follows:
// the remote HEAD symref, then refs/remotes/origin/HEAD, then the listing hint,
// then the current local branch, then "main". Candidates without a fetched
// remote tracking ref are skipped.
func resolveTargetBranch(ctx context.Context, repository *git.Repository, auth transport.AuthMethod, r Remote) string {
	candidates := []func() (string, error){
		func() (string, error) { return remoteHeadBranch(ctx, repository, auth) },
		func() (string, error) { return resolveRemoteDefaultBranch(repository) },
		func() (string, error) { return r.DefaultBranch, nil },
		func() (string, error) {
			head, err := repository.Head()
			if err != nil || !head.Name().IsBranch() {
				return "", err
			}
			return head.Name().Short(), nil
		},
	}
	for _, candidate := range candidates {
		branch, err := candidate()
		if err != nil || branch == "" {
			continue
		}
		if _, err := repository.Reference(plumbing.NewRemoteReferenceName("origin", branch), true); err == nil {
			return branch
		}
	}
	return fallbackBranch
}

// remoteHeadBranch asks the remote which branch its HEAD points to.
func remoteHeadBranch(ctx context.Context, repository *git.Repository, auth transport.AuthMethod) (string, error) {
	remote, err := repository.Remote("origin")
	if err != nil {
		return "", err
	}
	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	if err != nil {
		return "", err
	}
	for _, ref := range refs {
		if ref.Name() == plumbing.HEAD && ref.Type() == plumbing.SymbolicReference {
			return ref.Target().Short(), nil
		}
	}
	return "", fmt.Errorf("remote HEAD is not a symbolic reference")
}

func resolveRemoteDefaultBranch(repository *git.Repository) (string, error) {
	ref, err := repository.Reference(plumbing.ReferenceName("refs/remotes/origin/HEAD"), false)
	if err != nil {
		return "", err
	}
	target := ref.Target()
	if target == "" {
		return "", fmt.Errorf("origin/HEAD target empty")
	}
	return strings.TrimPrefix(target.String(), "refs/remotes/origin/"), nil
}

// checkoutBranch force-checks out the local branch, creating it at the remote ref if needed.
func checkoutBranch(repository *git.Repository, wt *git.Worktree, branch string) (*plumbing.Reference, error) {
	remoteRef, err := repository.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return nil, fmt.Errorf("remote ref %s: %w", branch, err)
	}
	localName := plumbing.NewBranchReferenceName(branch)
	if _, err := repository.Reference(localName, true); err != nil {
		if err := wt.Checkout(&git.CheckoutOptions{Branch: localName, Hash: remoteRef.Hash(), Create: true, Force: true}); err != nil {
			return nil, fmt.Errorf("checkout new branch: %w", err)
		}
		return remoteRef, nil
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: localName, Force: true}); err != nil {
		return nil, fmt.Errorf("checkout existing branch: %w", err)
	}
	return remoteRef, nil
}
