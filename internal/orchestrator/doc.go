// Package orchestrator runs one batch: list repositories, filter them, sync and
// build each one, and assemble the manifest in listing order.
//
// Per-repository failures never abort the batch. They are logged and recorded
// as a failed manifest entry. Only a failed listing, a slug collision, a failed
// manifest write or cancellation of the run context abort a run.
//
// Repositories run sequentially by default. With Concurrency > 1 they run in an
// errgroup bounded by that limit; every repository holds an exclusive workspace
// scope and its subprocesses get their environment per child, so nothing is
// shared between concurrent repositories. Results are stored by listing index.
package orchestrator
