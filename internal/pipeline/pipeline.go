// Package pipeline sequences the ingestion and classification runs, retries
// failed stages, and emits the milestone events the readiness gate consumes.
package pipeline

import (
	"context"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
	"github.com/aeroclimate/takeoff-humidity/internal/source"
)

// Feed is a closeable chunk source.
type Feed interface {
	source.ChunkSource
	Close() error
}

// FeedFactory opens a fresh feed for one aggregation attempt. Each retry of
// the aggregate stage gets its own feed so a half-consumed source is never
// reused.
type FeedFactory func(ctx context.Context) (Feed, error)

// OffsetCommitter is implemented by feeds whose consumed input must be
// acknowledged explicitly. The ingestion driver commits only after the
// aggregated rows are persisted, so an unacknowledged run replays its
// input instead of losing it.
type OffsetCommitter interface {
	Commit(ctx context.Context) error
}

// Aggregator produces the canonical record set from a feed.
type Aggregator interface {
	Aggregate(ctx context.Context, src source.ChunkSource) ([]domain.AggregateRecord, error)
}

// Classifier assigns takeoff ranks to a batch of aggregates.
type Classifier interface {
	Classify(records []domain.AggregateRecord) ([]domain.RankedRecord, error)
}

// IngestStore is the slice of the store gateway the ingestion driver uses.
type IngestStore interface {
	EnsureSchema(ctx context.Context) error
	UpsertFlights(ctx context.Context, records []domain.AggregateRecord) (int, error)
	AppendMilestone(ctx context.Context, kind domain.MilestoneKind, detail string) error
}

// RankStore is the slice of the store gateway the classification driver uses.
type RankStore interface {
	EnsureSchema(ctx context.Context) error
	WeeklyAggregates(ctx context.Context) ([]domain.AggregateRecord, error)
	UpsertRanks(ctx context.Context, records []domain.RankedRecord) (int, error)
	AppendMilestone(ctx context.Context, kind domain.MilestoneKind, detail string) error
	LatestMilestoneOfKind(ctx context.Context, kind domain.MilestoneKind) (domain.MilestoneEvent, bool, error)
}

// Awaiter blocks until a named upstream milestone is observed.
type Awaiter interface {
	Await(ctx context.Context, kind domain.MilestoneKind, afterID int64) (domain.MilestoneEvent, error)
}
