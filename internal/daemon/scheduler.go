package daemon

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Scheduler wraps a gocron scheduler holding the periodic run job.
type Scheduler struct {
	scheduler gocron.Scheduler
	daemon    *Daemon

	mu    sync.Mutex
	jobID uuid.UUID
}

// NewScheduler creates a scheduler that triggers runs on d.
func NewScheduler(d *Daemon) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, daemon: d}, nil
}

// Schedule replaces the periodic job. A zero interval disables periodic runs.
func (s *Scheduler) Schedule(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobID != uuid.Nil {
		if err := s.scheduler.RemoveJob(s.jobID); err != nil {
			return fmt.Errorf("failed to remove periodic job: %w", err)
		}
		s.jobID = uuid.Nil
	}
	if interval <= 0 {
		slog.Info("Periodic runs disabled")
		return nil
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.daemon.Trigger("scheduled") }),
		gocron.WithName("periodic-run"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create periodic run job: %w", err)
	}
	s.jobID = job.ID()
	slog.Info("Scheduled periodic runs", slog.Duration("interval", interval), "job_id", job.ID().String())
	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop shuts the scheduler down.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
