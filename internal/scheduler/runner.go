package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/logger"
)

// SweepFunc runs one sweep.
type SweepFunc func(ctx context.Context) (*SweepResult, error)

// Runner triggers a sweep at startup and then on a schedule: every Interval
// when it is set, otherwise once a day at Hour in Location.
type Runner struct {
	sweep    SweepFunc
	hour     int
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
	log      *zap.SugaredLogger
}

// NewRunner creates a Runner. A zero interval selects the daily schedule.
func NewRunner(sweep SweepFunc, hour int, interval time.Duration, loc *time.Location) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{
		sweep:    sweep,
		hour:     hour,
		interval: interval,
		loc:      loc,
		now:      time.Now,
		log:      logger.Named("runner"),
	}
}

// NextRun returns the next time a sweep is due after now.
func (r *Runner) NextRun(now time.Time) time.Time {
	if r.interval > 0 {
		return now.Add(r.interval)
	}
	local := now.In(r.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), r.hour, 0, 0, 0, r.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, r.hour, 0, 0, 0, r.loc)
	}
	return next
}

// Run sweeps once immediately, then on schedule until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.runOnce(ctx, "startup")

	for {
		next := r.NextRun(r.now())
		wait := time.Until(next)
		r.log.Infow("next planned sweep scheduled", "at", next.Format(time.RFC3339), "in", wait.Round(time.Second).String())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.log.Info("runner stopped")
			return nil
		case <-timer.C:
			r.runOnce(ctx, "schedule")
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, trigger string) {
	result, err := r.sweep(ctx)
	switch {
	case errors.Is(err, apperrors.ErrSweepInProgress):
		r.log.Warnw("sweep already running, skipping", "trigger", trigger)
	case errors.Is(err, context.Canceled):
		r.log.Infow("sweep cancelled", "trigger", trigger)
	case err != nil:
		r.log.Errorw("sweep failed", "trigger", trigger, "error", err)
	default:
		r.log.Infow("sweep finished",
			"trigger", trigger,
			"applied", result.Applied,
			"failed_users", len(result.Failed),
		)
	}
}
