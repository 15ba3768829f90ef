package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"PetPlanBilling/internal/ports"
)

// CronDriver schedules jobs at fixed times of day in a fixed timezone,
// backed by robfig/cron.
type CronDriver struct {
	cron  *cron.Cron
	count int
}

var _ ports.TriggerDriver = (*CronDriver)(nil)

// NewCronDriver builds a driver bound to the given location.
func NewCronDriver(location *time.Location) *CronDriver {
	return &CronDriver{cron: cron.New(cron.WithLocation(location))}
}

// Register adds a daily trigger at hour:minute. The job receives the
// scheduled firing time.
func (d *CronDriver) Register(name string, hour, minute int, job func(time.Time)) error {
	if job == nil {
		return fmt.Errorf("trigger %s: nil job", name)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("trigger %s: invalid time %02d:%02d", name, hour, minute)
	}

	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	if _, err := d.cron.AddFunc(spec, func() { job(time.Now()) }); err != nil {
		return fmt.Errorf("trigger %s: %w", name, err)
	}
	d.count++
	return nil
}

// Start launches the cron loop in its own goroutine.
func (d *CronDriver) Start() {
	d.cron.Start()
}

// Stop cancels all triggers, waiting for in-flight jobs until ctx ends.
func (d *CronDriver) Stop(ctx context.Context) error {
	done := d.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count reports how many triggers are registered.
func (d *CronDriver) Count() int {
	return d.count
}
