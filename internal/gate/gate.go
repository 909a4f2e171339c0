// Package gate implements the cross-pipeline readiness protocol: a
// downstream run blocks until the upstream pipeline has logged a specific
// named milestone, with no coupling beyond the shared operations log.
//
// The gate is a coarse, at-least-once barrier, not a message queue. It
// guarantees only that the requested milestone kind was appended after the
// given checkpoint; it matches on the kind, never on the log merely having
// grown, so unrelated log entries cannot produce false readiness.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
)

// MilestoneLog is the slice of the store gateway the gate reads through.
type MilestoneLog interface {
	MilestonesAfter(ctx context.Context, afterID int64) ([]domain.MilestoneEvent, error)
}

// Gate polls the milestone log on a fixed interval.
type Gate struct {
	log     MilestoneLog
	poll    time.Duration
	timeout time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
}

// New creates a Gate. A timeout of zero means wait until the context is
// cancelled.
func New(log MilestoneLog, poll, timeout time.Duration, clock clockwork.Clock, logger *slog.Logger) *Gate {
	return &Gate{
		log:     log,
		poll:    poll,
		timeout: timeout,
		clock:   clock,
		logger:  logger,
	}
}

// Await blocks until an event of the given kind with ID greater than afterID
// appears in the log, then returns it. Transient read errors are logged and
// retried on the next poll. When the timeout elapses first, Await returns a
// domain.ReadinessTimeoutError; the bound is timeout plus at most one poll
// interval.
func (g *Gate) Await(ctx context.Context, kind domain.MilestoneKind, afterID int64) (domain.MilestoneEvent, error) {
	start := g.clock.Now()

	var deadline <-chan time.Time
	if g.timeout > 0 {
		deadline = g.clock.After(g.timeout)
	}

	for {
		if ev, ok := g.check(ctx, kind, afterID); ok {
			return ev, nil
		}
		if err := ctx.Err(); err != nil {
			return domain.MilestoneEvent{}, err
		}

		g.logger.Info("upstream milestone not observed yet, waiting",
			"kind", kind,
			"after_id", afterID,
			"poll_interval", g.poll,
		)

		select {
		case <-ctx.Done():
			return domain.MilestoneEvent{}, ctx.Err()
		case <-deadline:
			return domain.MilestoneEvent{}, &domain.ReadinessTimeoutError{
				Kind:    kind,
				AfterID: afterID,
				Waited:  g.clock.Since(start),
			}
		case <-g.clock.After(g.poll):
		}
	}
}

func (g *Gate) check(ctx context.Context, kind domain.MilestoneKind, afterID int64) (domain.MilestoneEvent, bool) {
	events, err := g.log.MilestonesAfter(ctx, afterID)
	if err != nil {
		g.logger.Warn("milestone log read failed, will retry", "error", err)
		return domain.MilestoneEvent{}, false
	}
	for _, ev := range events {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return domain.MilestoneEvent{}, false
}
