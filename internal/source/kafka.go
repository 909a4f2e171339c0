package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
)

// kafkaRow is the flat JSON row the collector publishes to the feed topic.
// Everything arrives as strings, matching the CSV extract column-for-column.
type kafkaRow struct {
	TailNum  string `json:"TAIL_NUM"`
	Origin   string `json:"ORIGIN"`
	Dest     string `json:"DEST"`
	Year     string `json:"YEAR"`
	Month    string `json:"MONTH"`
	Day      string `json:"DAY_OF_MONTH"`
	Humidity string `json:"RelativeHumidityOrigin"`
}

// feedConsumer abstracts kafkago.Reader so commit behavior is testable.
type feedConsumer interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaSource consumes the raw observation feed from a Kafka topic in
// bounded chunks. It implements ChunkSource. The feed is considered
// exhausted once no message arrives within the idle timeout, which lets a
// scheduled batch run drain the topic and finish.
//
// Offsets are never committed by reading. Fetched messages accumulate as
// pending until Commit, so a run that dies before persisting replays the
// same rows next time instead of losing them.
type KafkaSource struct {
	consumer  feedConsumer
	chunkSize int
	idle      time.Duration
	logger    *slog.Logger

	// pending holds the highest fetched message per partition, the only
	// state CommitMessages needs to advance the group offsets.
	pending map[int]kafkago.Message
}

// NewKafkaSource creates a consumer for the feed topic.
func NewKafkaSource(brokers []string, topic, groupID string, chunkSize int, idle time.Duration, logger *slog.Logger) *KafkaSource {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newKafkaSource(r, chunkSize, idle, logger)
}

func newKafkaSource(consumer feedConsumer, chunkSize int, idle time.Duration, logger *slog.Logger) *KafkaSource {
	return &KafkaSource{
		consumer:  consumer,
		chunkSize: chunkSize,
		idle:      idle,
		logger:    logger,
		pending:   make(map[int]kafkago.Message),
	}
}

// Next reads up to chunkSize rows from the topic. Rows that fail to decode
// are skipped with a warning, mirroring the CSV source's per-row policy;
// their offsets still become pending so a poison row is not refetched
// forever.
func (s *KafkaSource) Next(ctx context.Context) ([]domain.RawObservation, error) {
	chunk := make([]domain.RawObservation, 0, s.chunkSize)

	for len(chunk) < s.chunkSize {
		readCtx, cancel := context.WithTimeout(ctx, s.idle)
		msg, err := s.consumer.FetchMessage(readCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				// Topic drained for this run.
				if len(chunk) == 0 {
					return nil, io.EOF
				}
				return chunk, nil
			}
			return nil, fmt.Errorf("read feed message: %w", err)
		}

		if prev, ok := s.pending[msg.Partition]; !ok || msg.Offset > prev.Offset {
			s.pending[msg.Partition] = msg
		}

		obs, err := decodeFeedRow(msg.Value)
		if err != nil {
			s.logger.Warn("skipping undecodable feed row",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			continue
		}
		chunk = append(chunk, obs)
	}

	return chunk, nil
}

func decodeFeedRow(value []byte) (domain.RawObservation, error) {
	var row kafkaRow
	if err := json.Unmarshal(value, &row); err != nil {
		return domain.RawObservation{}, fmt.Errorf("decode feed row: %w", err)
	}

	year, errY := strconv.Atoi(row.Year)
	month, errM := strconv.Atoi(row.Month)
	day, errD := strconv.Atoi(row.Day)
	if errY != nil || errM != nil || errD != nil {
		return domain.RawObservation{}, fmt.Errorf("feed row has malformed date %q-%q-%q", row.Year, row.Month, row.Day)
	}
	if row.TailNum == "" || row.Origin == "" || row.Dest == "" {
		return domain.RawObservation{}, errors.New("feed row missing identifiers")
	}

	humidity, valid := domain.ParseHumidity(row.Humidity)

	return domain.RawObservation{
		TailNum:       row.TailNum,
		Origin:        row.Origin,
		Dest:          row.Dest,
		Year:          year,
		Month:         month,
		Day:           day,
		Humidity:      humidity,
		HumidityValid: valid,
	}, nil
}

// Commit advances the group offsets past everything fetched so far. The
// ingestion driver calls this only after the aggregated rows have been
// persisted; until then a crash or failed run replays the uncommitted
// messages and the key-wise upsert absorbs the duplicates.
func (s *KafkaSource) Commit(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, len(s.pending))
	for _, msg := range s.pending {
		msgs = append(msgs, msg)
	}
	if err := s.consumer.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("commit feed offsets: %w", err)
	}
	s.logger.Info("feed offsets committed", "partitions", len(msgs))
	s.pending = make(map[int]kafkago.Message)
	return nil
}

// Close shuts down the underlying Kafka reader. Pending offsets that were
// never committed are simply refetched by the next consumer.
func (s *KafkaSource) Close() error {
	return s.consumer.Close()
}
