// Package daemon keeps slides up to date in the background.
//
// A single worker goroutine performs runs, so runs never overlap. Triggers from
// the scheduler, the config watcher and the HTTP API are coalesced: while a run
// is in progress at most one follow-up run is queued.
package daemon
