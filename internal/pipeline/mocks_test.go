package pipeline_test

import (
	"context"
	"io"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
	"github.com/aeroclimate/takeoff-humidity/internal/pipeline"
	"github.com/aeroclimate/takeoff-humidity/internal/source"
)

// --- test doubles ---

type sliceFeed struct {
	chunks [][]domain.RawObservation
	index  int
	closed bool
}

func (f *sliceFeed) Next(_ context.Context) ([]domain.RawObservation, error) {
	if f.index >= len(f.chunks) {
		return nil, io.EOF
	}
	chunk := f.chunks[f.index]
	f.index++
	return chunk, nil
}

func (f *sliceFeed) Close() error {
	f.closed = true
	return nil
}

// countingFactory hands out a fresh feed per call and remembers every feed
// it opened.
type countingFactory struct {
	chunks [][]domain.RawObservation
	opened []*sliceFeed
	err    error
}

func (c *countingFactory) open(_ context.Context) (pipeline.Feed, error) {
	if c.err != nil {
		return nil, c.err
	}
	feed := &sliceFeed{chunks: c.chunks}
	c.opened = append(c.opened, feed)
	return feed, nil
}

// ackFeed is a sliceFeed whose consumed input must be acknowledged
// explicitly, like the Kafka feed.
type ackFeed struct {
	sliceFeed
	commits  int
	onCommit func()
}

func (f *ackFeed) Commit(_ context.Context) error {
	f.commits++
	if f.onCommit != nil {
		f.onCommit()
	}
	return nil
}

type ackFactory struct {
	chunks   [][]domain.RawObservation
	onCommit func()
	opened   []*ackFeed
}

func (c *ackFactory) open(_ context.Context) (pipeline.Feed, error) {
	feed := &ackFeed{sliceFeed: sliceFeed{chunks: c.chunks}, onCommit: c.onCommit}
	c.opened = append(c.opened, feed)
	return feed, nil
}

// stubAggregator drains the source, then returns canned records. errs are
// consumed one per call so a test can fail the first attempts and succeed
// on a later one.
type stubAggregator struct {
	records []domain.AggregateRecord
	errs    []error
	calls   int
}

func (a *stubAggregator) Aggregate(ctx context.Context, src source.ChunkSource) ([]domain.AggregateRecord, error) {
	a.calls++
	for {
		if _, err := src.Next(ctx); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
	}
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return a.records, nil
}

type stubClassifier struct {
	ranked []domain.RankedRecord
	err    error
	got    []domain.AggregateRecord
}

func (c *stubClassifier) Classify(records []domain.AggregateRecord) ([]domain.RankedRecord, error) {
	c.got = records
	if c.err != nil {
		return nil, c.err
	}
	return c.ranked, nil
}

// mockStore implements both store slices the drivers consume. Milestones
// are kept encoded, matching what would land in the operations table.
type mockStore struct {
	schemaErr    error
	upsertErrs   []error
	upsertCalls  int
	flights      []domain.AggregateRecord
	ranks        []domain.RankedRecord
	milestones   []string
	milestoneErr error

	aggregates    []domain.AggregateRecord
	aggregatesErr error
	checkpoint    domain.MilestoneEvent
	hasCheckpoint bool
	checkpointErr error
}

func (s *mockStore) EnsureSchema(context.Context) error { return s.schemaErr }

func (s *mockStore) popUpsertErr() error {
	s.upsertCalls++
	if len(s.upsertErrs) > 0 {
		err := s.upsertErrs[0]
		s.upsertErrs = s.upsertErrs[1:]
		return err
	}
	return nil
}

func (s *mockStore) UpsertFlights(_ context.Context, records []domain.AggregateRecord) (int, error) {
	if err := s.popUpsertErr(); err != nil {
		return 0, err
	}
	s.flights = append(s.flights, records...)
	return len(records), nil
}

func (s *mockStore) UpsertRanks(_ context.Context, records []domain.RankedRecord) (int, error) {
	if err := s.popUpsertErr(); err != nil {
		return 0, err
	}
	s.ranks = append(s.ranks, records...)
	return len(records), nil
}

func (s *mockStore) AppendMilestone(_ context.Context, kind domain.MilestoneKind, detail string) error {
	if s.milestoneErr != nil {
		return s.milestoneErr
	}
	s.milestones = append(s.milestones, domain.EncodeMilestone(kind, detail))
	return nil
}

func (s *mockStore) WeeklyAggregates(context.Context) ([]domain.AggregateRecord, error) {
	if s.aggregatesErr != nil {
		return nil, s.aggregatesErr
	}
	return s.aggregates, nil
}

func (s *mockStore) LatestMilestoneOfKind(_ context.Context, _ domain.MilestoneKind) (domain.MilestoneEvent, bool, error) {
	if s.checkpointErr != nil {
		return domain.MilestoneEvent{}, false, s.checkpointErr
	}
	return s.checkpoint, s.hasCheckpoint, nil
}

// stubGate records what it was asked to await.
type stubGate struct {
	event   domain.MilestoneEvent
	err     error
	kind    domain.MilestoneKind
	afterID int64
}

func (g *stubGate) Await(_ context.Context, kind domain.MilestoneKind, afterID int64) (domain.MilestoneEvent, error) {
	g.kind = kind
	g.afterID = afterID
	if g.err != nil {
		return domain.MilestoneEvent{}, g.err
	}
	return g.event, nil
}
