package orchestrator

import "git.home.luguber.info/inful/slidebuilder/internal/manifest"

// State is the lifecycle position of one repository within a run.
type State string

const (
	StatePending     State = "pending"
	StateSyncing     State = "syncing"
	StateSyncFailed  State = "sync_failed"
	StateBuilding    State = "building"
	StateBuildFailed State = "build_failed"
	StateBuilt       State = "built"
)

var transitions = map[State][]State{
	StatePending:  {StateSyncing, StateSyncFailed},
	StateSyncing:  {StateSyncFailed, StateBuilding},
	StateBuilding: {StateBuildFailed, StateBuilt},
}

// CanTransition reports whether to is a legal successor of s.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSyncFailed || s == StateBuildFailed || s == StateBuilt
}

// Status maps a terminal state to the manifest build status.
func (s State) Status() manifest.Status {
	if s == StateBuilt {
		return manifest.StatusSuccess
	}
	return manifest.StatusFailure
}
