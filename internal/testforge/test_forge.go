// Package testforge provides an in-process GitHub-compatible listing API for tests.
package testforge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"git.home.luguber.info/inful/slidebuilder/internal/forge"
)

// FailMode defines how the test forge should behave
type FailMode int

const (
	FailModeNone FailMode = iota
	FailModeAuth
	FailModeNotFound
	FailModeServer
	FailModeMalformed
)

// TestForge serves /orgs/{owner}/repos and /users/{owner}/repos with page/per_page pagination.
type TestForge struct {
	mu       sync.Mutex
	orgs     map[string][]forge.Repository
	users    map[string][]forge.Repository
	failMode FailMode
	token    string
	requests []string
}

// NewTestForge creates an empty forge.
func NewTestForge() *TestForge {
	return &TestForge{
		orgs:  make(map[string][]forge.Repository),
		users: make(map[string][]forge.Repository),
	}
}

// AddRepository appends a repository to an owner's listing.
func (tf *TestForge) AddRepository(owner string, isOrg bool, repo forge.Repository) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	if isOrg {
		tf.orgs[owner] = append(tf.orgs[owner], repo)
	} else {
		tf.users[owner] = append(tf.users[owner], repo)
	}
}

// SetFailMode changes how subsequent requests are answered.
func (tf *TestForge) SetFailMode(mode FailMode) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.failMode = mode
}

// RequireToken makes requests without "Bearer <token>" fail with 401.
func (tf *TestForge) RequireToken(token string) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.token = token
}

// Requests returns the request URIs received so far.
func (tf *TestForge) Requests() []string {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	out := make([]string, len(tf.requests))
	copy(out, tf.requests)
	return out
}

// Server starts an httptest server closed at test cleanup.
func (tf *TestForge) Server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /orgs/{owner}/repos", func(w http.ResponseWriter, r *http.Request) {
		tf.serve(w, r, tf.orgs)
	})
	mux.HandleFunc("GET /users/{owner}/repos", func(w http.ResponseWriter, r *http.Request) {
		tf.serve(w, r, tf.users)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type githubRepo struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	CloneURL      string  `json:"clone_url"`
	HTMLURL       string  `json:"html_url"`
	DefaultBranch string  `json:"default_branch"`
	Archived      bool    `json:"archived"`
	Fork          bool    `json:"fork"`
}

func (tf *TestForge) serve(w http.ResponseWriter, r *http.Request, listings map[string][]forge.Repository) {
	tf.mu.Lock()
	tf.requests = append(tf.requests, r.URL.RequestURI())
	mode, token := tf.failMode, tf.token
	repos, ok := listings[r.PathValue("owner")]
	repos = append([]forge.Repository(nil), repos...)
	tf.mu.Unlock()

	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
		return
	}
	switch mode {
	case FailModeAuth:
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
		return
	case FailModeNotFound:
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	case FailModeServer:
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
		return
	case FailModeMalformed:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name": `))
		return
	}
	if !ok {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}

	page := atoiDefault(r.URL.Query().Get("page"), 1)
	perPage := atoiDefault(r.URL.Query().Get("per_page"), 30)
	start := (page - 1) * perPage
	if start > len(repos) {
		start = len(repos)
	}
	end := min(start+perPage, len(repos))

	out := make([]githubRepo, 0, end-start)
	for _, repo := range repos[start:end] {
		gr := githubRepo{
			Name:          repo.Name,
			CloneURL:      repo.CloneURL,
			HTMLURL:       repo.HTMLURL,
			DefaultBranch: repo.DefaultBranch,
			Archived:      repo.Archived,
			Fork:          repo.Fork,
		}
		if repo.Description != "" {
			d := repo.Description
			gr.Description = &d
		}
		out = append(out, gr)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
