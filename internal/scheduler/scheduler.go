package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Runner invokes a Job on a fixed interval until its context is cancelled.
type Runner struct {
	name     string
	interval time.Duration
	job      Job
	logger   *zap.Logger
}

// NewRunner creates a Runner for job.
func NewRunner(name string, interval time.Duration, job Job, logger *zap.Logger) *Runner {
	return &Runner{name: name, interval: interval, job: job, logger: logger.With(zap.String("job", name))}
}

// Run blocks until ctx is done. With runOnStart the job also runs once immediately.
// A failed run is logged and the next tick proceeds as usual.
func (r *Runner) Run(ctx context.Context, runOnStart bool) {
	r.logger.Info("Scheduler started", zap.Duration("interval", r.interval))
	defer r.logger.Info("Scheduler stopped")

	// Useful after a deploy: expired subscriptions do not wait a full interval.
	if runOnStart {
		r.runOnce(ctx)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Shutdown: an in-flight run has already returned by the time we get here.
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

// runOnce executes the job a single time and logs the outcome.
func (r *Runner) runOnce(ctx context.Context) {
	start := time.Now()
	if err := r.job(ctx); err != nil {
		r.logger.Error("Scheduled run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	r.logger.Debug("Scheduled run finished", zap.Duration("elapsed", time.Since(start)))
}
