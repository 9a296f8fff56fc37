package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyOwner      = "owner"
	KeyRepo       = "repository"
	KeySlug       = "slug"
	KeyState      = "state"
	KeyStage      = "stage"
	KeyStatus     = "status"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyName       = "name"
	KeyBranch     = "branch"
	KeyCommit     = "commit"
	KeyCommand    = "command"
	KeyDurationMS = "duration_ms"
	KeyAttempt    = "attempt"
	KeyCount      = "count"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr     { return slog.String(KeyRunID, id) }
func Owner(o string) slog.Attr      { return slog.String(KeyOwner, o) }
func Repository(r string) slog.Attr { return slog.String(KeyRepo, r) }
func Slug(s string) slog.Attr       { return slog.String(KeySlug, s) }
func State(s string) slog.Attr      { return slog.String(KeyState, s) }
func Stage(name string) slog.Attr   { return slog.String(KeyStage, name) }
func Status(s string) slog.Attr     { return slog.String(KeyStatus, s) }
func Path(p string) slog.Attr       { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr        { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr       { return slog.String(KeyName, n) }
func Branch(b string) slog.Attr     { return slog.String(KeyBranch, b) }
func Command(c string) slog.Attr    { return slog.String(KeyCommand, c) }
func Attempt(n int) slog.Attr       { return slog.Int(KeyAttempt, n) }
func Count(n int) slog.Attr         { return slog.Int(KeyCount, n) }

// Commit logs the abbreviated form of a commit hash.
func Commit(hash string) slog.Attr {
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return slog.String(KeyCommit, hash)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
