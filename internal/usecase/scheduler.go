package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"PetPlanBilling/internal/metrics"
	"PetPlanBilling/internal/ports"
)

// Job names accepted by RunJob and used in logs and metrics.
const (
	JobUpcomingDue          = "upcoming-due"
	JobRenewal              = "renewal"
	JobStatusReconciliation = "status-reconciliation"
	JobOverdueNotifications = "overdue-notifications"
)

// JobTime is a fixed time of day for one trigger.
type JobTime struct {
	Hour   int
	Minute int
}

// SchedulerConfig carries the enable switch and the staggered trigger
// times. Heavier jobs default to low-traffic hours.
type SchedulerConfig struct {
	Enabled         bool
	UpcomingDue     JobTime
	Renewal         JobTime
	Reconciliation  JobTime
	Overdue         JobTime
	UpcomingDueDays int
}

// SchedulerStatus is the operational snapshot returned by Status.
type SchedulerStatus struct {
	Enabled  bool
	Triggers int
}

// JobScheduler owns the timing and lifecycle of the four lifecycle
// jobs. Errors and panics from scheduled invocations stop at this
// boundary; future runs are unaffected.
type JobScheduler struct {
	driver     ports.TriggerDriver
	reconciler *Reconciler
	renewal    *Renewal
	cfg        SchedulerConfig
	logger     *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewJobScheduler wires the driver and the two services.
func NewJobScheduler(driver ports.TriggerDriver, reconciler *Reconciler, renewal *Renewal, cfg SchedulerConfig, logger *slog.Logger) *JobScheduler {
	if cfg.UpcomingDueDays <= 0 {
		cfg.UpcomingDueDays = 3
	}
	return &JobScheduler{
		driver:     driver,
		reconciler: reconciler,
		renewal:    renewal,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start registers the four triggers and launches the driver. When the
// scheduler is disabled, or already started, it is a no-op.
func (s *JobScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		if s.logger != nil {
			s.logger.Info("scheduler disabled, no triggers registered")
		}
		return nil
	}
	if s.started {
		return nil
	}

	triggers := []struct {
		name string
		at   JobTime
	}{
		{JobRenewal, s.cfg.Renewal},
		{JobStatusReconciliation, s.cfg.Reconciliation},
		{JobUpcomingDue, s.cfg.UpcomingDue},
		{JobOverdueNotifications, s.cfg.Overdue},
	}

	for _, trigger := range triggers {
		name := trigger.name
		err := s.driver.Register(name, trigger.at.Hour, trigger.at.Minute, func(fired time.Time) {
			s.invoke(ctx, name, fired)
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}

	s.driver.Start()
	s.started = true
	if s.logger != nil {
		s.logger.Info("scheduler started", "triggers", s.driver.Count())
	}
	return nil
}

// Stop cancels all registered triggers. Safe to call without Start.
func (s *JobScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false
	return s.driver.Stop(ctx)
}

// RunJob invokes one job on demand and returns its result object.
func (s *JobScheduler) RunJob(ctx context.Context, name string) (any, error) {
	return s.runAt(ctx, name, time.Now())
}

// Status reports the enable flag and registered trigger count.
func (s *JobScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{Enabled: s.cfg.Enabled}
	if s.started {
		status.Triggers = s.driver.Count()
	}
	return status
}

// invoke is the containment boundary for scheduled runs: whatever the
// job does, the trigger survives.
func (s *JobScheduler) invoke(ctx context.Context, name string, fired time.Time) {
	defer func() {
		if recovered := recover(); recovered != nil {
			metrics.JobRuns.WithLabelValues(name, "panic").Inc()
			if s.logger != nil {
				s.logger.Error("job panicked", "job", name, "panic", recovered)
			}
		}
	}()

	if s.logger != nil {
		s.logger.Info("job triggered", "job", name, "fired_at", fired)
	}

	result, err := s.runAt(ctx, name, fired)
	if err != nil {
		metrics.JobRuns.WithLabelValues(name, "error").Inc()
		if s.logger != nil {
			s.logger.Error("job failed", "job", name, "error", err)
		}
		return
	}

	metrics.JobRuns.WithLabelValues(name, "ok").Inc()
	if s.logger != nil {
		s.logger.Info("job finished", "job", name, "result", fmt.Sprintf("%+v", result))
	}
}

func (s *JobScheduler) runAt(ctx context.Context, name string, now time.Time) (any, error) {
	switch name {
	case JobUpcomingDue:
		return s.renewal.SendUpcomingDueNotifications(ctx, now, s.cfg.UpcomingDueDays)
	case JobRenewal:
		return s.renewal.ProcessAutomaticRenewals(ctx, now)
	case JobStatusReconciliation:
		return s.reconciler.Run(ctx, now)
	case JobOverdueNotifications:
		return s.renewal.SendOverdueNotifications(ctx, now)
	default:
		return nil, fmt.Errorf("unknown job %q", name)
	}
}
