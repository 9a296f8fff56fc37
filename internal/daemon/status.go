package daemon

import (
	"time"

	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
)

// Status describes the daemon's most recent activity.
type Status struct {
	Running       bool      `json:"running"`
	Reason        string    `json:"reason,omitempty"`
	Runs          int       `json:"runs"`
	LastRunAt     time.Time `json:"last_run_at,omitzero"`
	LastDuration  string    `json:"last_duration,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	LastGenerated int64     `json:"last_generated,omitempty"`
	Success       int       `json:"success"`
	Failure       int       `json:"failure"`
}

// Status returns a snapshot of the current status.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Daemon) setRunning(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status.Running = true
	d.status.Reason = reason
}

func (d *Daemon) finishRun(m *manifest.Manifest, err error, took time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status.Running = false
	d.status.Runs++
	d.status.LastRunAt = time.Now()
	d.status.LastDuration = took.Round(time.Millisecond).String()
	d.status.LastError = ""
	if err != nil {
		d.status.LastError = err.Error()
	}
	if m != nil {
		d.status.LastGenerated = m.Generated
		d.status.Success, d.status.Failure = m.Counts()
	}
}
