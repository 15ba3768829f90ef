package app

import (
	"context"
	"fmt"
	"log/slog"

	"PetPlanBilling/internal/config"
	"PetPlanBilling/internal/infrastructure/db"
	"PetPlanBilling/internal/infrastructure/gateway"
	"PetPlanBilling/internal/infrastructure/notify"
	"PetPlanBilling/internal/infrastructure/scheduler"
	"PetPlanBilling/internal/infrastructure/storage"
	"PetPlanBilling/internal/logging"
	"PetPlanBilling/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pool      *db.Pool
	scheduler *usecase.JobScheduler
}

// New builds the full object graph from configuration. Nothing is
// global: tests can construct isolated instances.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	pool, err := db.NewPool(db.PoolConfig{
		DSN:            cfg.Database.DSN,
		MaxConns:       cfg.Database.MaxConns,
		MinConns:       cfg.Database.MinConns,
		AcquireTimeout: cfg.Database.AcquireTimeout.AsDuration(),
		ProbeInterval:  cfg.Database.HealthProbeEvery.AsDuration(),
	}, logging.Component(baseLogger, "db.pool"))
	if err != nil {
		return nil, fmt.Errorf("build pool: %w", err)
	}

	retries := db.RetryOptions{
		MaxAttempts: cfg.Database.RetryAttempts,
		BaseDelay:   cfg.Database.RetryBaseDelay.AsDuration(),
	}

	repository := storage.NewPostgresRepository(pool, retries, logging.Component(baseLogger, "storage"))
	paymentGateway := gateway.NewClient(cfg.Gateway.Endpoint, cfg.Gateway.APIKey, logging.Component(baseLogger, "gateway"))
	notifier := notify.NewClient(cfg.Notifications.Endpoint, cfg.Notifications.APIKey)

	reconciler := usecase.NewReconciler(repository, logging.Component(baseLogger, "reconciler"))
	renewal := usecase.NewRenewal(usecase.RenewalDeps{
		Repository: repository,
		Gateway:    paymentGateway,
		Notifier:   notifier,
		WindowDays: cfg.Scheduler.RenewalWindowDays,
		Logger:     logging.Component(baseLogger, "renewal"),
	})

	driver := scheduler.NewCronDriver(cfg.Scheduler.Location())
	jobScheduler := usecase.NewJobScheduler(driver, reconciler, renewal, usecase.SchedulerConfig{
		Enabled:         cfg.Scheduler.Enabled,
		UpcomingDue:     usecase.JobTime{Hour: cfg.Scheduler.UpcomingDue.Hour, Minute: cfg.Scheduler.UpcomingDue.Minute},
		Renewal:         usecase.JobTime{Hour: cfg.Scheduler.Renewal.Hour, Minute: cfg.Scheduler.Renewal.Minute},
		Reconciliation:  usecase.JobTime{Hour: cfg.Scheduler.Reconciliation.Hour, Minute: cfg.Scheduler.Reconciliation.Minute},
		Overdue:         usecase.JobTime{Hour: cfg.Scheduler.Overdue.Hour, Minute: cfg.Scheduler.Overdue.Minute},
		UpcomingDueDays: cfg.Scheduler.UpcomingDueDays,
	}, logging.Component(baseLogger, "scheduler"))

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		pool:      pool,
		scheduler: jobScheduler,
	}, nil
}

// Run starts the health monitor and the scheduler, then blocks until
// the context ends.
func (a *Application) Run(ctx context.Context) error {
	a.pool.StartHealthMonitor()
	defer a.shutdown()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	status := a.scheduler.Status()
	a.logger.Info("billing engine running",
		"scheduler_enabled", status.Enabled,
		"triggers", status.Triggers)

	<-ctx.Done()
	return nil
}

// RunJob executes a single job on demand and returns its result, for
// operational tooling.
func (a *Application) RunJob(ctx context.Context, name string) (any, error) {
	a.pool.StartHealthMonitor()
	defer a.shutdown()
	return a.scheduler.RunJob(ctx, name)
}

func (a *Application) shutdown() {
	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Database.AcquireTimeout.AsDuration())
	defer cancel()

	if err := a.scheduler.Stop(stopCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	if err := a.pool.Close(); err != nil {
		a.logger.Warn("pool close", "error", err)
	}
}
