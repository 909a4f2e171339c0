package domain

import "time"

// AggregateRecord is the canonical per-key windowed humidity record: mean
// humidity for one (aircraft, origin, destination, date), annotated with its
// week bucket. Unique per key; immutable once persisted (re-runs upsert the
// identical key).
type AggregateRecord struct {
	TailNum  string
	Origin   string
	Dest     string
	Week     int
	Date     time.Time
	Humidity float64
}

// Rank is the qualitative takeoff-safety band assigned by the classifier.
type Rank string

const (
	RankGood     Rank = "Good"
	RankModerate Rank = "Moderate"
	RankBad      Rank = "Bad"
)

// RankedRecord is an aggregate annotated with its batch-relative rank.
// The cluster index that produced the rank is internal and not carried.
type RankedRecord struct {
	TailNum  string
	Origin   string
	Dest     string
	Week     int
	Humidity float64
	Rank     Rank
}
