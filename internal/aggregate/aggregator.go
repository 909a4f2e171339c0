// Package aggregate turns the raw observation feed into canonical
// per-(aircraft, route, date) humidity records.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
	"github.com/aeroclimate/takeoff-humidity/internal/source"
)

// groupKey identifies one aggregation group.
type groupKey struct {
	tailNum string
	origin  string
	dest    string
	year    int
	month   int
	day     int
}

// groupAcc accumulates the running sum for one group. Only valid humidity
// readings reach the accumulator.
type groupAcc struct {
	sum   float64
	count int
}

// Aggregator consumes a chunked source and emits the sorted canonical
// record set. Peak memory is bounded by the chunk size plus one accumulator
// per distinct group key.
type Aggregator struct {
	logger *slog.Logger
}

// New creates an Aggregator.
func New(logger *slog.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Aggregate drains the source and returns one AggregateRecord per group key
// with at least one valid humidity reading. The mean is rounded to two
// decimals half-to-even. Output is sorted ascending by date, then by
// (tail, origin, dest), so repeated runs over identical input are
// byte-identical.
func (a *Aggregator) Aggregate(ctx context.Context, src source.ChunkSource) ([]domain.AggregateRecord, error) {
	groups := make(map[groupKey]*groupAcc)
	var read, dropped int

	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("aggregate: %w", err)
		}

		read += len(chunk)
		for _, obs := range chunk {
			if !obs.HumidityValid {
				dropped++
				continue
			}
			key := groupKey{obs.TailNum, obs.Origin, obs.Dest, obs.Year, obs.Month, obs.Day}
			acc, ok := groups[key]
			if !ok {
				acc = &groupAcc{}
				groups[key] = acc
			}
			acc.sum += obs.Humidity
			acc.count++
		}
	}

	records := make([]domain.AggregateRecord, 0, len(groups))
	for key, acc := range groups {
		records = append(records, domain.AggregateRecord{
			TailNum:  key.tailNum,
			Origin:   key.origin,
			Dest:     key.dest,
			Week:     domain.WeekOfMonth(key.day),
			Date:     domain.RawObservation{Year: key.year, Month: key.month, Day: key.day}.Date(),
			Humidity: domain.RoundHumidity(acc.sum / float64(acc.count)),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		ri, rj := records[i], records[j]
		if !ri.Date.Equal(rj.Date) {
			return ri.Date.Before(rj.Date)
		}
		if ri.TailNum != rj.TailNum {
			return ri.TailNum < rj.TailNum
		}
		if ri.Origin != rj.Origin {
			return ri.Origin < rj.Origin
		}
		return ri.Dest < rj.Dest
	})

	a.logger.Info("aggregation complete",
		"rows_read", read,
		"rows_without_humidity", dropped,
		"groups", len(records),
	)

	return records, nil
}
