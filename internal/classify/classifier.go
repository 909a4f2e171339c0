// Package classify partitions aggregated humidity records into three
// qualitative takeoff bands. Rank is relative to the batch being classified:
// the cluster with the lowest mean humidity is always Good and the highest
// always Bad, regardless of which arbitrary index the clustering assigns.
package classify

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
)

// DefaultSeed keeps repeated runs over identical input byte-identical.
const DefaultSeed = 42

const numClusters = 3

// Classifier assigns takeoff ranks by 1-D k-means over humidity.
type Classifier struct {
	seed   int64
	logger *slog.Logger
}

// New creates a Classifier with the given clustering seed.
func New(seed int64, logger *slog.Logger) *Classifier {
	return &Classifier{seed: seed, logger: logger}
}

// Classify returns one RankedRecord per input record with usable humidity.
// Records whose humidity is NaN are dropped before clustering. Batches with
// fewer than three distinct humidity values take the deterministic
// degenerate path instead of clustering.
func (c *Classifier) Classify(records []domain.AggregateRecord) ([]domain.RankedRecord, error) {
	usable := make([]domain.AggregateRecord, 0, len(records))
	for _, r := range records {
		if math.IsNaN(r.Humidity) {
			continue
		}
		usable = append(usable, r)
	}
	if len(usable) == 0 {
		return nil, nil
	}

	values := make([]float64, len(usable))
	for i, r := range usable {
		values[i] = r.Humidity
	}

	distinct := distinctSorted(values)
	if len(distinct) < numClusters {
		c.logger.Info("degenerate classification input, using distinct-value ranks",
			"records", len(usable),
			"distinct_values", len(distinct),
		)
		return rankDegenerate(usable, distinct), nil
	}

	rng := rand.New(rand.NewSource(c.seed))
	assignments := kmeans1D(values, numClusters, rng)
	rankByCluster := rankClustersByMean(values, assignments)

	ranked := make([]domain.RankedRecord, len(usable))
	for i, r := range usable {
		ranked[i] = rankedRecord(r, rankByCluster[assignments[i]])
	}

	c.logger.Info("classification complete", "records", len(ranked))
	return ranked, nil
}

// rankClustersByMean orders the three clusters by mean humidity ascending
// and maps cluster index to Good, Moderate, Bad in that order.
func rankClustersByMean(values []float64, assignments []int) map[int]domain.Rank {
	members := make(map[int][]float64, numClusters)
	for i, v := range values {
		members[assignments[i]] = append(members[assignments[i]], v)
	}

	type clusterMean struct {
		cluster int
		mean    float64
	}
	means := make([]clusterMean, 0, numClusters)
	for cluster, vals := range members {
		m, err := stats.Mean(vals)
		if err != nil {
			continue
		}
		means = append(means, clusterMean{cluster: cluster, mean: m})
	}
	sort.Slice(means, func(i, j int) bool { return means[i].mean < means[j].mean })

	order := []domain.Rank{domain.RankGood, domain.RankModerate, domain.RankBad}
	ranks := make(map[int]domain.Rank, len(means))
	for i, cm := range means {
		ranks[cm.cluster] = order[i]
	}
	return ranks
}

// rankDegenerate handles batches with fewer than three distinct humidity
// values: one distinct value ranks everything Moderate; two distinct values
// rank the lower Good and the higher Bad. Deterministic by construction.
func rankDegenerate(records []domain.AggregateRecord, distinct []float64) []domain.RankedRecord {
	ranked := make([]domain.RankedRecord, len(records))
	for i, r := range records {
		rank := domain.RankModerate
		if len(distinct) == 2 {
			if r.Humidity == distinct[0] {
				rank = domain.RankGood
			} else {
				rank = domain.RankBad
			}
		}
		ranked[i] = rankedRecord(r, rank)
	}
	return ranked
}

func rankedRecord(r domain.AggregateRecord, rank domain.Rank) domain.RankedRecord {
	return domain.RankedRecord{
		TailNum:  r.TailNum,
		Origin:   r.Origin,
		Dest:     r.Dest,
		Week:     r.Week,
		Humidity: r.Humidity,
		Rank:     rank,
	}
}

func distinctSorted(values []float64) []float64 {
	seen := make(map[float64]struct{}, len(values))
	distinct := make([]float64, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		distinct = append(distinct, v)
	}
	sort.Float64s(distinct)
	return distinct
}
