package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
	"github.com/aeroclimate/takeoff-humidity/internal/observability"
)

// ClassificationPipeline waits for fresh upstream ingestion, re-reads the
// persisted aggregates at week granularity, ranks them, and persists the
// ranked set.
type ClassificationPipeline struct {
	store      RankStore
	gate       Awaiter
	classifier Classifier
	retrier    *Retrier
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClassification wires the classification driver.
func NewClassification(store RankStore, gate Awaiter, classifier Classifier, retrier *Retrier, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *ClassificationPipeline {
	return &ClassificationPipeline{
		store:      store,
		gate:       gate,
		classifier: classifier,
		retrier:    retrier,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run executes one classification run. The gate is keyed off the latest
// classification.completed milestone, so each run demands an ingestion
// completion newer than the last classification: stale readiness signals
// cannot trigger a re-run over unchanged data.
func (p *ClassificationPipeline) Run(ctx context.Context) error {
	if err := p.run(ctx); err != nil {
		p.noteFailed(ctx, err)
		return err
	}
	return nil
}

func (p *ClassificationPipeline) run(ctx context.Context) error {
	if err := p.retrier.Do(ctx, "schema", p.store.EnsureSchema); err != nil {
		return err
	}

	var afterID int64
	err := p.retrier.Do(ctx, "checkpoint", func(ctx context.Context) error {
		ev, ok, err := p.store.LatestMilestoneOfKind(ctx, domain.ClassificationCompleted)
		if err != nil {
			return err
		}
		if ok {
			afterID = ev.ID
		}
		return nil
	})
	if err != nil {
		return err
	}

	waitStart := p.clock.Now()
	upstream, err := p.gate.Await(ctx, domain.IngestionCompleted, afterID)
	p.metrics.GateWaitDuration.Observe(p.clock.Since(waitStart).Seconds())
	if err != nil {
		return err
	}
	p.logger.Info("upstream ingestion observed", "milestone_id", upstream.ID, "detail", upstream.Detail)

	if err := p.appendMilestone(ctx, domain.ClassificationStarted, ""); err != nil {
		return err
	}

	var records []domain.AggregateRecord
	err = p.retrier.Do(ctx, "read", func(ctx context.Context) error {
		records, err = p.store.WeeklyAggregates(ctx)
		return err
	})
	if err != nil {
		return err
	}

	var ranked []domain.RankedRecord
	err = p.retrier.Do(ctx, "classify", func(_ context.Context) error {
		ranked, err = p.classifier.Classify(records)
		return err
	})
	if err != nil {
		return err
	}
	p.metrics.RecordsClassified.Add(float64(len(ranked)))

	var written int
	err = p.retrier.Do(ctx, "persist", func(ctx context.Context) error {
		n, err := p.store.UpsertRanks(ctx, ranked)
		p.metrics.RowsPersisted.WithLabelValues("humidity_rank").Add(float64(n))
		if err != nil {
			p.metrics.PersistFailures.WithLabelValues("humidity_rank").Inc()
			return err
		}
		written = n
		return nil
	})
	if err != nil {
		return err
	}

	if err := p.appendMilestone(ctx, domain.ClassificationCompleted, fmt.Sprintf("%d rows", written)); err != nil {
		return err
	}

	p.logger.Info("classification run complete", "rows", written)
	return nil
}

func (p *ClassificationPipeline) appendMilestone(ctx context.Context, kind domain.MilestoneKind, detail string) error {
	err := p.retrier.Do(ctx, "milestone", func(ctx context.Context) error {
		return p.store.AppendMilestone(ctx, kind, detail)
	})
	if err != nil {
		return err
	}
	p.metrics.MilestonesAppended.WithLabelValues(string(kind)).Inc()
	return nil
}

func (p *ClassificationPipeline) noteFailed(ctx context.Context, runErr error) {
	if err := p.store.AppendMilestone(ctx, domain.ClassificationFailed, runErr.Error()); err != nil {
		p.logger.Warn("could not append failure milestone", "kind", domain.ClassificationFailed, "error", err)
		return
	}
	p.metrics.MilestonesAppended.WithLabelValues(string(domain.ClassificationFailed)).Inc()
}
