package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
	"github.com/aeroclimate/takeoff-humidity/internal/observability"
)

// Retrier runs a stage up to a fixed attempt budget with a fixed delay
// between attempts. Retries are stage-local: a later stage failing never
// re-runs an earlier stage.
type Retrier struct {
	attempts int
	delay    time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewRetrier creates a Retrier. attempts counts the first try.
func NewRetrier(attempts int, delay time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Retrier {
	return &Retrier{
		attempts: attempts,
		delay:    delay,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Do runs fn until it succeeds or the budget is spent. Schema and readiness
// timeout errors are terminal: retrying cannot fix a malformed feed, and a
// gate timeout already exhausted its own wait budget.
func (r *Retrier) Do(ctx context.Context, stage string, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		start := r.clock.Now()
		err = fn(ctx)
		r.metrics.StageDuration.WithLabelValues(stage).Observe(r.clock.Since(start).Seconds())

		if err == nil {
			return nil
		}
		if isTerminal(err) || ctx.Err() != nil {
			return err
		}
		if attempt == r.attempts {
			break
		}

		r.metrics.StageRetries.WithLabelValues(stage).Inc()
		r.logger.Warn("stage failed, retrying",
			"stage", stage,
			"attempt", attempt,
			"of", r.attempts,
			"delay", r.delay,
			"error", err,
		)
		if !r.sleep(ctx) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("stage %s failed after %d attempts: %w", stage, r.attempts, err)
}

func isTerminal(err error) bool {
	var schemaErr *domain.SchemaError
	var timeoutErr *domain.ReadinessTimeoutError
	return errors.As(err, &schemaErr) || errors.As(err, &timeoutErr)
}

func (r *Retrier) sleep(ctx context.Context) bool {
	if r.delay <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-r.clock.After(r.delay):
		return true
	}
}
