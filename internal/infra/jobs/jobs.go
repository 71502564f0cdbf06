// Package jobs runs periodic maintenance on a gocron scheduler.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/eduguardian/guardian/internal/infra/logger"
	"github.com/eduguardian/guardian/internal/infra/metrics"
)

// CooldownSweeper deletes cooldown records older than a cutoff.
type CooldownSweeper interface {
	SweepCooldowns(ctx context.Context, before time.Time) (int64, error)
}

// Runner owns the scheduler.
type Runner struct {
	sched gocron.Scheduler
	log   *logger.Logger
	now   func() time.Time
}

// New creates a stopped runner.
func New(log *logger.Logger) (*Runner, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{sched: sched, log: log.With("component", "jobs"), now: time.Now}, nil
}

// ScheduleCooldownSweep removes cooldown rows that can no longer throttle
// anything, every interval. Rows are kept for twice the cooldown so a slow
// clock on another instance cannot re-credit a note.
func (r *Runner) ScheduleCooldownSweep(store CooldownSweeper, interval, cooldown time.Duration) error {
	_, err := r.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := SweepCooldowns(ctx, store, r.now(), cooldown)
			if err != nil {
				r.log.Error("cooldown sweep failed", "error", err)
				return
			}
			if n > 0 {
				r.log.Debug("cooldowns swept", "rows", n)
			}
		}),
		gocron.WithName("cooldown-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule cooldown sweep: %w", err)
	}
	return nil
}

// SweepCooldowns runs one sweep pass.
func SweepCooldowns(ctx context.Context, store CooldownSweeper, now time.Time, cooldown time.Duration) (int64, error) {
	n, err := store.SweepCooldowns(ctx, now.Add(-2*cooldown))
	if err != nil {
		return 0, err
	}
	metrics.CooldownsSwept.Add(float64(n))
	return n, nil
}

// Start begins running scheduled jobs.
func (r *Runner) Start() { r.sched.Start() }

// Jobs returns the number of scheduled jobs.
func (r *Runner) Jobs() int { return len(r.sched.Jobs()) }

// Shutdown stops the scheduler and waits for running jobs.
func (r *Runner) Shutdown() error { return r.sched.Shutdown() }
