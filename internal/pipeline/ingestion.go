package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
	"github.com/aeroclimate/takeoff-humidity/internal/observability"
)

// IngestionPipeline drains the raw feed, aggregates it, and persists the
// canonical record set. The ingestion.completed milestone is appended only
// after every batch has committed, which is what downstream readiness
// depends on.
type IngestionPipeline struct {
	feed       FeedFactory
	aggregator Aggregator
	store      IngestStore
	retrier    *Retrier
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewIngestion wires the ingestion driver.
func NewIngestion(feed FeedFactory, aggregator Aggregator, store IngestStore, retrier *Retrier, logger *slog.Logger, metrics *observability.Metrics) *IngestionPipeline {
	return &IngestionPipeline{
		feed:       feed,
		aggregator: aggregator,
		store:      store,
		retrier:    retrier,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run executes one ingestion run. On failure an ingestion.failed milestone
// is appended best-effort and the error is returned to the scheduler.
func (p *IngestionPipeline) Run(ctx context.Context) error {
	if err := p.run(ctx); err != nil {
		p.noteFailed(ctx, domain.IngestionFailed, err)
		return err
	}
	return nil
}

func (p *IngestionPipeline) run(ctx context.Context) error {
	err := p.retrier.Do(ctx, "schema", p.store.EnsureSchema)
	if err != nil {
		return err
	}

	if err := p.appendMilestone(ctx, domain.IngestionStarted, ""); err != nil {
		return err
	}

	// The feed of the successful attempt stays open past aggregation: a
	// committable feed may only acknowledge its input after persistence.
	var (
		records []domain.AggregateRecord
		feed    Feed
	)
	err = p.retrier.Do(ctx, "aggregate", func(ctx context.Context) error {
		f, err := p.feed(ctx)
		if err != nil {
			return err
		}
		recs, err := p.aggregator.Aggregate(ctx, meter(f, p.metrics))
		if err != nil {
			f.Close()
			return err
		}
		records = recs
		feed = f
		return nil
	})
	if err != nil {
		return err
	}
	defer feed.Close()
	p.metrics.RecordsAggregated.Add(float64(len(records)))

	var written int
	err = p.retrier.Do(ctx, "persist", func(ctx context.Context) error {
		n, err := p.store.UpsertFlights(ctx, records)
		p.metrics.RowsPersisted.WithLabelValues("flights").Add(float64(n))
		if err != nil {
			p.metrics.PersistFailures.WithLabelValues("flights").Inc()
			return err
		}
		written = n
		return nil
	})
	if err != nil {
		return err
	}

	// All batches committed; only now is the consumed input acknowledged.
	// An earlier commit would turn any failed run into silent data loss.
	if committer, ok := feed.(OffsetCommitter); ok {
		if err := p.retrier.Do(ctx, "acknowledge", committer.Commit); err != nil {
			return err
		}
	}

	if err := p.appendMilestone(ctx, domain.IngestionCompleted, fmt.Sprintf("%d rows", written)); err != nil {
		return err
	}

	p.logger.Info("ingestion run complete", "rows", written)
	return nil
}

func (p *IngestionPipeline) appendMilestone(ctx context.Context, kind domain.MilestoneKind, detail string) error {
	err := p.retrier.Do(ctx, "milestone", func(ctx context.Context) error {
		return p.store.AppendMilestone(ctx, kind, detail)
	})
	if err != nil {
		return err
	}
	p.metrics.MilestonesAppended.WithLabelValues(string(kind)).Inc()
	return nil
}

func (p *IngestionPipeline) noteFailed(ctx context.Context, kind domain.MilestoneKind, runErr error) {
	// Best effort: the run already failed, a lost failure milestone only
	// costs log visibility.
	if err := p.store.AppendMilestone(ctx, kind, runErr.Error()); err != nil {
		p.logger.Warn("could not append failure milestone", "kind", kind, "error", err)
		return
	}
	p.metrics.MilestonesAppended.WithLabelValues(string(kind)).Inc()
}
