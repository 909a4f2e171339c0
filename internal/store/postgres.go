// Package store is the narrow gateway to the relational store. It owns
// schema creation, batched upserts for the flights and humidity_rank
// tables, and the append-only operations log the pipelines coordinate
// through. All writes are batch-scoped transactions; a failed batch rolls
// back alone and is always surfaced, never swallowed.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq" // postgres driver

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
)

const (
	createFlights = `CREATE TABLE IF NOT EXISTS flights (
		tail_num VARCHAR(30) NOT NULL,
		origin VARCHAR(25) NOT NULL,
		dest VARCHAR(25) NOT NULL,
		week INT NOT NULL,
		date DATE NOT NULL,
		humidity DECIMAL,
		PRIMARY KEY (tail_num, origin, dest, date)
	)`

	createHumidityRank = `CREATE TABLE IF NOT EXISTS humidity_rank (
		tail_num VARCHAR(30) NOT NULL,
		origin VARCHAR(25) NOT NULL,
		dest VARCHAR(25) NOT NULL,
		week INT NOT NULL,
		humidity VARCHAR(20),
		rank VARCHAR(15),
		PRIMARY KEY (tail_num, origin, dest, week)
	)`

	createOperations = `CREATE TABLE IF NOT EXISTS operations (
		id SERIAL PRIMARY KEY,
		"update" VARCHAR(400),
		loaddate TIMESTAMP
	)`
)

// psql builds queries with Postgres-style $N placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Gateway talks to Postgres through database/sql. It is safe for use from
// multiple goroutines; the pool handles connection sharing.
type Gateway struct {
	db        *sql.DB
	batchSize int
	logger    *slog.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, batchSize int, logger *slog.Logger) (*Gateway, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &domain.TransientStoreError{Op: "ping", Err: err}
	}
	return NewGateway(db, batchSize, logger), nil
}

// NewGateway wraps an existing connection pool, mainly for tests.
func NewGateway(db *sql.DB, batchSize int, logger *slog.Logger) *Gateway {
	return &Gateway{db: db, batchSize: batchSize, logger: logger}
}

// EnsureSchema creates the three tables if absent. Idempotent: re-creating
// an existing table is a no-op, never an error.
func (g *Gateway) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createFlights, createHumidityRank, createOperations} {
		if _, err := g.db.ExecContext(ctx, stmt); err != nil {
			return &domain.TransientStoreError{Op: "ensure schema", Err: err}
		}
	}
	return nil
}

// UpsertFlights writes the aggregate set in fixed-size batches, one
// transaction per batch. Returns the number of rows committed. On a batch
// failure the batch rolls back and the error is surfaced; batches already
// committed stay committed.
func (g *Gateway) UpsertFlights(ctx context.Context, records []domain.AggregateRecord) (int, error) {
	return g.upsertBatches(ctx, "flights", len(records), func(start, end int) (string, []any, error) {
		b := psql.Insert("flights").
			Columns("tail_num", "origin", "dest", "week", "date", "humidity").
			Suffix("ON CONFLICT (tail_num, origin, dest, date) DO UPDATE SET week = EXCLUDED.week, humidity = EXCLUDED.humidity")
		for _, r := range records[start:end] {
			b = b.Values(r.TailNum, r.Origin, r.Dest, r.Week, r.Date, r.Humidity)
		}
		return b.ToSql()
	})
}

// UpsertRanks writes the ranked set in fixed-size batches, one transaction
// per batch, keyed by (tail_num, origin, dest, week) so a re-run replaces
// the previous classification instead of duplicating it.
func (g *Gateway) UpsertRanks(ctx context.Context, records []domain.RankedRecord) (int, error) {
	return g.upsertBatches(ctx, "humidity_rank", len(records), func(start, end int) (string, []any, error) {
		b := psql.Insert("humidity_rank").
			Columns("tail_num", "origin", "dest", "week", "humidity", "rank").
			Suffix("ON CONFLICT (tail_num, origin, dest, week) DO UPDATE SET humidity = EXCLUDED.humidity, rank = EXCLUDED.rank")
		for _, r := range records[start:end] {
			b = b.Values(r.TailNum, r.Origin, r.Dest, r.Week, fmt.Sprintf("%.2f", r.Humidity), string(r.Rank))
		}
		return b.ToSql()
	})
}

// upsertBatches slices [0, total) into batchSize windows and runs the built
// statement for each window inside its own transaction.
func (g *Gateway) upsertBatches(ctx context.Context, table string, total int, build func(start, end int) (string, []any, error)) (int, error) {
	written := 0
	for start := 0; start < total; start += g.batchSize {
		end := start + g.batchSize
		if end > total {
			end = total
		}

		query, args, err := build(start, end)
		if err != nil {
			return written, fmt.Errorf("build %s insert: %w", table, err)
		}

		if err := g.execInTx(ctx, query, args); err != nil {
			return written, &domain.TransientStoreError{
				Op:  fmt.Sprintf("upsert %s batch [%d:%d]", table, start, end),
				Err: err,
			}
		}

		written += end - start
		g.logger.Debug("batch committed", "table", table, "rows", end-start, "total", written)
	}
	return written, nil
}

func (g *Gateway) execInTx(ctx context.Context, query string, args []any) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			g.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	return tx.Commit()
}

// AppendMilestone appends one event to the operations log. The serial id
// column guarantees strictly increasing ids even with interleaved writers.
func (g *Gateway) AppendMilestone(ctx context.Context, kind domain.MilestoneKind, detail string) error {
	query, args, err := psql.Insert("operations").
		Columns(`"update"`, "loaddate").
		Values(domain.EncodeMilestone(kind, detail), domain.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build milestone insert: %w", err)
	}
	if _, err := g.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.TransientStoreError{Op: "append milestone", Err: err}
	}
	return nil
}

// RecentMilestones returns the newest events first, at most limit of them.
// The status endpoint serves these as the pipeline's recent history.
func (g *Gateway) RecentMilestones(ctx context.Context, limit uint64) ([]domain.MilestoneEvent, error) {
	return g.milestonesWhere(ctx, sq.Gt{"id": 0}, limit)
}

// LatestMilestoneOfKind returns the most recent event of the given kind.
// The second return is false when no such event exists. The filter matches
// the kind exactly (bare, or followed by the detail separator): a plain
// prefix LIKE would let a foreign log entry sharing the prefix shadow a
// genuine older match under the LIMIT.
func (g *Gateway) LatestMilestoneOfKind(ctx context.Context, kind domain.MilestoneKind) (domain.MilestoneEvent, bool, error) {
	cond := sq.Or{
		sq.Eq{`"update"`: string(kind)},
		sq.Like{`"update"`: string(kind) + ": %"},
	}
	events, err := g.milestonesWhere(ctx, cond, 1)
	if err != nil {
		return domain.MilestoneEvent{}, false, err
	}
	for _, ev := range events {
		if ev.Kind == kind {
			return ev, true, nil
		}
	}
	return domain.MilestoneEvent{}, false, nil
}

// MilestonesAfter returns all events with id greater than afterID, oldest
// first. The readiness gate scans these for a specific kind.
func (g *Gateway) MilestonesAfter(ctx context.Context, afterID int64) ([]domain.MilestoneEvent, error) {
	query, args, err := psql.Select("id", `"update"`, "loaddate").
		From("operations").
		Where(sq.Gt{"id": afterID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build milestones query: %w", err)
	}
	return g.queryMilestones(ctx, query, args)
}

func (g *Gateway) milestonesWhere(ctx context.Context, cond sq.Sqlizer, limit uint64) ([]domain.MilestoneEvent, error) {
	query, args, err := psql.Select("id", `"update"`, "loaddate").
		From("operations").
		Where(cond).
		OrderBy("id DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build milestones query: %w", err)
	}
	return g.queryMilestones(ctx, query, args)
}

func (g *Gateway) queryMilestones(ctx context.Context, query string, args []any) ([]domain.MilestoneEvent, error) {
	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.TransientStoreError{Op: "query milestones", Err: err}
	}
	defer rows.Close()

	var events []domain.MilestoneEvent
	for rows.Next() {
		var (
			ev     domain.MilestoneEvent
			update string
		)
		if err := rows.Scan(&ev.ID, &update, &ev.LoadDate); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		ev.Kind, ev.Detail = domain.DecodeMilestone(update)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.TransientStoreError{Op: "iterate milestones", Err: err}
	}
	return events, nil
}

// WeeklyAggregates re-reads the persisted aggregate set rolled up to week
// granularity, the input the classifier runs on.
func (g *Gateway) WeeklyAggregates(ctx context.Context) ([]domain.AggregateRecord, error) {
	query, args, err := psql.Select("tail_num", "origin", "dest", "week", "ROUND(AVG(humidity), 2) AS humidity").
		From("flights").
		GroupBy("tail_num", "origin", "dest", "week").
		OrderBy("tail_num", "origin", "dest", "week").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build weekly aggregates query: %w", err)
	}

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.TransientStoreError{Op: "query weekly aggregates", Err: err}
	}
	defer rows.Close()

	var records []domain.AggregateRecord
	for rows.Next() {
		var (
			r        domain.AggregateRecord
			humidity sql.NullFloat64
		)
		if err := rows.Scan(&r.TailNum, &r.Origin, &r.Dest, &r.Week, &humidity); err != nil {
			return nil, fmt.Errorf("scan weekly aggregate: %w", err)
		}
		if !humidity.Valid {
			// NULL humidity survives only if every row for the key was NULL;
			// such keys carry nothing for the classifier.
			continue
		}
		r.Humidity = humidity.Float64
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.TransientStoreError{Op: "iterate weekly aggregates", Err: err}
	}
	return records, nil
}

// Ranks reads back the persisted ranked set, ordered like the classifier
// input so reads are comparable across runs.
func (g *Gateway) Ranks(ctx context.Context) ([]domain.RankedRecord, error) {
	query, args, err := psql.Select("tail_num", "origin", "dest", "week", "humidity", "rank").
		From("humidity_rank").
		OrderBy("tail_num", "origin", "dest", "week").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ranks query: %w", err)
	}

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.TransientStoreError{Op: "query ranks", Err: err}
	}
	defer rows.Close()

	var records []domain.RankedRecord
	for rows.Next() {
		var (
			r        domain.RankedRecord
			humidity string
			rank     string
		)
		if err := rows.Scan(&r.TailNum, &r.Origin, &r.Dest, &r.Week, &humidity, &rank); err != nil {
			return nil, fmt.Errorf("scan rank: %w", err)
		}
		v, err := strconv.ParseFloat(humidity, 64)
		if err != nil {
			return nil, fmt.Errorf("parse stored humidity %q for %s/%s/%s week %d: %w",
				humidity, r.TailNum, r.Origin, r.Dest, r.Week, err)
		}
		r.Humidity = v
		r.Rank = domain.Rank(rank)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.TransientStoreError{Op: "iterate ranks", Err: err}
	}
	return records, nil
}

// Close releases the connection pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}
