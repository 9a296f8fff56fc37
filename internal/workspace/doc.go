// Package workspace hands out exclusive, per-repository working copy scopes
// inside the persistent cache directory.
//
// A Scope carries its directory and an environment overlay that is applied to
// child processes started through it. Nothing in this package changes the
// process working directory or the process environment, so scopes for different
// repositories can be used concurrently.
package workspace
