package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aeroclimate/takeoff-humidity/internal/observability"
)

// Runner wraps a pipeline with interval scheduling and readiness tracking.
// The daemon is "ready" once its pipeline has completed one successful run.
type Runner struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// NewRunner creates a Runner for the named pipeline.
func NewRunner(name string, interval time.Duration, run func(ctx context.Context) error, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		name:     name,
		interval: interval,
		run:      run,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once at least one run has succeeded.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return fmt.Errorf("pipeline %s has not completed a run yet", r.name)
	}
	return nil
}

// Once executes a single run and records its outcome.
func (r *Runner) Once(ctx context.Context) error {
	r.metrics.PipelineRunning.WithLabelValues(r.name).Set(1)
	defer r.metrics.PipelineRunning.WithLabelValues(r.name).Set(0)

	start := r.clock.Now()
	err := r.run(ctx)
	elapsed := r.clock.Since(start)

	if err != nil {
		r.metrics.RunsFailed.WithLabelValues(r.name).Inc()
		r.logger.Error("pipeline run failed", "pipeline", r.name, "elapsed", elapsed, "error", err)
		return err
	}

	r.metrics.RunsCompleted.WithLabelValues(r.name).Inc()
	r.ready.Store(true)
	r.logger.Info("pipeline run succeeded", "pipeline", r.name, "elapsed", elapsed)
	return nil
}

// Loop runs immediately, then on every interval tick until the context is
// cancelled. Individual run failures are logged and the loop continues; the
// next tick gets a fresh chance.
func (r *Runner) Loop(ctx context.Context) error {
	r.logger.Info("pipeline loop started", "pipeline", r.name, "interval", r.interval)

	for {
		if err := r.Once(ctx); err != nil && errors.Is(err, context.Canceled) {
			return nil
		}

		select {
		case <-ctx.Done():
			r.logger.Info("pipeline loop stopping", "pipeline", r.name, "reason", ctx.Err())
			return nil
		case <-r.clock.After(r.interval):
		}
	}
}
