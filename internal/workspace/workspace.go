package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
)

// Manager owns the cache root and serializes access per repository key.
type Manager struct {
	root string

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewManager creates a manager rooted at dir. The directory is created on first Acquire.
func NewManager(root string) *Manager {
	return &Manager{root: root, locks: make(map[string]chan struct{})}
}

// Root returns the cache root directory.
func (m *Manager) Root() string { return m.root }

// Key normalizes a repository name into its cache key.
func Key(name string) string { return strings.ToLower(name) }

// PathFor returns the working copy directory for a repository name without locking it.
func (m *Manager) PathFor(name string) string {
	return filepath.Join(m.root, Key(name))
}

func (m *Manager) lockFor(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[key] = ch
	}
	return ch
}

// Acquire blocks until the working copy for name is free or ctx is done.
// The caller must Release the returned scope.
func (m *Manager) Acquire(ctx context.Context, name string) (*Scope, error) {
	key := Key(name)
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return nil, fmt.Errorf("invalid workspace key %q", name)
	}
	if err := os.MkdirAll(m.root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}

	lock := m.lockFor(key)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	slog.Debug("Acquired workspace", logfields.Repository(name), logfields.Path(m.PathFor(name)))
	return &Scope{Key: key, Dir: m.PathFor(name), release: lock}, nil
}

// Scope is an exclusive handle on one working copy directory.
type Scope struct {
	Key string
	Dir string

	env     []string
	once    sync.Once
	release chan struct{}
}

// Setenv adds a variable to the overlay applied to commands started from this scope.
func (s *Scope) Setenv(key, value string) {
	s.env = append(s.env, key+"="+value)
}

// Env returns the process environment with the scope overlay and extra applied, in that order.
func (s *Scope) Env(extra ...string) []string {
	env := os.Environ()
	env = append(env, s.env...)
	return append(env, extra...)
}

// Command prepares a child process that runs inside the working copy.
// extraEnv entries (KEY=VALUE) apply to this child only.
func (s *Scope) Command(ctx context.Context, argv []string, extraEnv ...string) (*exec.Cmd, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("empty command")
	}
	// #nosec G204 -- argv comes from operator configuration
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = s.Dir
	cmd.Env = s.Env(extraEnv...)
	return cmd, nil
}

// Exists reports whether the working copy directory is present.
func (s *Scope) Exists() bool {
	fi, err := os.Stat(s.Dir)
	return err == nil && fi.IsDir()
}

// Release frees the scope. Safe to call more than once.
func (s *Scope) Release() {
	s.once.Do(func() {
		if s.release != nil {
			<-s.release
		}
	})
}
