// Package sweeper runs the Delinquency Sweeper on a cron schedule.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/01moynul/taptosell-installments/internal/installment"
	"github.com/01moynul/taptosell-installments/internal/logger"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sweep at 02:00:00 every day.
const DefaultSchedule = "0 0 2 * * *"

// passTimeout bounds a single scheduled pass.
const passTimeout = 5 * time.Minute

// Runner performs one sweep pass.
type Runner interface {
	SweepOverdue(ctx context.Context, now time.Time) (installment.SweepReport, error)
}

// Sweeper represents the scheduled overdue sweep service
type Sweeper struct {
	cronScheduler  *cron.Cron
	runner         Runner
	clock          func() time.Time
	runImmediately bool

	mu       sync.Mutex
	jobID    cron.EntryID
	schedule string
	running  sync.Mutex
}

// New creates a sweeper over runner. Schedules use the six-field cron format with seconds.
func New(runner Runner, runImmediately bool) *Sweeper {
	return &Sweeper{
		cronScheduler:  cron.New(cron.WithSeconds()),
		runner:         runner,
		clock:          time.Now,
		runImmediately: runImmediately,
	}
}

// Start schedules the sweep and starts the cron scheduler.
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	s.mu.Lock()
	var err error
	s.jobID, err = s.cronScheduler.AddFunc(schedule, s.scheduledRun)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("error scheduling overdue sweep: %w", err)
	}
	s.schedule = schedule
	s.mu.Unlock()

	s.cronScheduler.Start()
	logger.Info(context.Background(), "overdue sweep scheduler started", "schedule", schedule)

	if s.runImmediately {
		go s.scheduledRun()
	}
	return nil
}

// Stop terminates the scheduler and waits for a running pass to finish.
func (s *Sweeper) Stop() {
	if s.cronScheduler == nil {
		return
	}
	<-s.cronScheduler.Stop().Done()
	logger.Info(context.Background(), "overdue sweep scheduler stopped")
}

// UpdateSchedule replaces the sweep's cron expression.
// Format: "0 0 2 * * *" = At 02:00:00 AM every day
func (s *Sweeper) UpdateSchedule(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cronScheduler.AddFunc(schedule, s.scheduledRun)
	if err != nil {
		return fmt.Errorf("error updating schedule: %w", err)
	}
	s.cronScheduler.Remove(s.jobID)
	s.jobID = id
	s.schedule = schedule

	logger.Info(context.Background(), "overdue sweep schedule updated", "schedule", schedule)
	return nil
}

// Schedule returns the active cron expression.
func (s *Sweeper) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// Next returns when the sweep fires next, or the zero time if it is not scheduled.
func (s *Sweeper) Next() time.Time {
	s.mu.Lock()
	id := s.jobID
	s.mu.Unlock()
	return s.cronScheduler.Entry(id).Next
}

// RunOnce executes a pass now. Passes never overlap.
func (s *Sweeper) RunOnce(ctx context.Context) (installment.SweepReport, error) {
	s.running.Lock()
	defer s.running.Unlock()

	began := time.Now()
	report, err := s.runner.SweepOverdue(ctx, s.clock())
	if err != nil {
		logger.Error(ctx, "overdue sweep finished with errors", "error", err, "failed", report.Failed)
	}
	logger.Debug(ctx, "overdue sweep pass", "duration_ms", time.Since(began).Milliseconds())
	return report, err
}

func (s *Sweeper) scheduledRun() {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}
