package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitRemote is a bare repository on disk plus a seed clone used to push commits into it.
type GitRemote struct {
	t        *testing.T
	URL      string
	seed     *git.Repository
	seedPath string
}

// NewGitRemote creates an empty bare remote and its seed working copy under t.TempDir().
func NewGitRemote(t *testing.T, name string) *GitRemote {
	t.Helper()
	base := t.TempDir()
	bare := filepath.Join(base, name+".git")
	if _, err := git.PlainInit(bare, true); err != nil {
		t.Fatalf("init bare: %v", err)
	}
	seedPath := filepath.Join(base, "seed")
	seed, err := git.PlainInit(seedPath, false)
	if err != nil {
		t.Fatalf("init seed: %v", err)
	}
	if _, err := seed.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{bare}}); err != nil {
		t.Fatalf("remote: %v", err)
	}
	return &GitRemote{t: t, URL: bare, seed: seed, seedPath: seedPath}
}

// Commit writes files (relative path -> content) into the seed, commits and pushes them.
// It returns the new commit hash.
func (r *GitRemote) Commit(message string, files map[string]string) plumbing.Hash {
	r.t.Helper()
	wt, err := r.seed.Worktree()
	if err != nil {
		r.t.Fatalf("worktree: %v", err)
	}
	for rel, content := range files {
		full := filepath.Join(r.seedPath, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			r.t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
			r.t.Fatalf("write: %v", err)
		}
		if _, err := wt.Add(rel); err != nil {
			r.t.Fatalf("add: %v", err)
		}
	}
	h, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	if err != nil {
		r.t.Fatalf("commit: %v", err)
	}
	if err := r.seed.Push(&git.PushOptions{RemoteName: "origin"}); err != nil && err != git.NoErrAlreadyUpToDate {
		r.t.Fatalf("push: %v", err)
	}
	return h
}

// Head returns the commit the seed (and therefore the remote) points at.
func (r *GitRemote) Head() plumbing.Hash {
	r.t.Helper()
	ref, err := r.seed.Head()
	if err != nil {
		r.t.Fatalf("head: %v", err)
	}
	return ref.Hash()
}

// HeadOf returns the HEAD commit of the working copy at path.
func HeadOf(t *testing.T, path string) plumbing.Hash {
	t.Helper()
	repo, err := git.PlainOpen(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	ref, err := repo.Head()
	if err != nil {
		t.Fatalf("head %s: %v", path, err)
	}
	return ref.Hash()
}
