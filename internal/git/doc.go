// Package git keeps cached working copies in step with their remotes.
//
// A working copy is cloned when absent. Otherwise every remote branch is fetched
// and the local branch is hard reset to the remote default branch, discarding any
// local changes and untracked files.
package git
