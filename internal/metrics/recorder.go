package metrics

import "time"

// Stage names used for per-repository durations.
const (
	StageSync  = "sync"
	StageBuild = "build"
)

// RunOutcome is the overall result of one orchestrator run.
type RunOutcome string

const (
	OutcomeSuccess RunOutcome = "success" // every repository built
	OutcomePartial RunOutcome = "partial" // at least one repository failed
	OutcomeFailed  RunOutcome = "failed"  // no manifest was produced
)

// Recorder defines the observability hooks used by the orchestrator.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncRepositoryResult(state string)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome RunOutcome)
	SetSlides(success, failure int)
	SetConcurrency(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncRepositoryResult(string)                 {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(RunOutcome)                   {}
func (NoopRecorder) SetSlides(int, int)                         {}
func (NoopRecorder) SetConcurrency(int)                         {}
