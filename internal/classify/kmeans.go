package classify

import (
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
)

// kmeans1D runs Lloyd's algorithm on a single dimension with k clusters.
// Initialization is k-means++ style driven by the seeded rng, so identical
// input and seed always produce identical cluster membership. The caller
// guarantees at least k distinct values.
func kmeans1D(values []float64, k int, rng *rand.Rand) []int {
	centroids := seedCentroids(values, k, rng)
	assignments := make([]int, len(values))

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, v := range values {
			c := nearest(centroids, v)
			if assignments[i] != c {
				assignments[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		recomputeCentroids(values, assignments, centroids)
	}

	return assignments
}

const maxIterations = 100

// seedCentroids picks k initial centroids: the first uniformly at random,
// the rest weighted by squared distance to the nearest chosen centroid.
func seedCentroids(values []float64, k int, rng *rand.Rand) []float64 {
	centroids := make([]float64, 0, k)
	centroids = append(centroids, values[rng.Intn(len(values))])

	for len(centroids) < k {
		weights := make([]float64, len(values))
		var total float64
		for i, v := range values {
			d := v - centroids[nearest(centroids, v)]
			weights[i] = d * d
			total += weights[i]
		}

		if total == 0 {
			// All remaining mass sits on chosen centroids; fall back to a
			// uniform pick among values not yet chosen.
			centroids = append(centroids, pickUnchosen(values, centroids, rng))
			continue
		}

		target := rng.Float64() * total
		var cum float64
		for i, w := range weights {
			cum += w
			if cum >= target {
				centroids = append(centroids, values[i])
				break
			}
		}
	}

	return centroids
}

func pickUnchosen(values, centroids []float64, rng *rand.Rand) float64 {
	candidates := make([]float64, 0, len(values))
	for _, v := range values {
		taken := false
		for _, c := range centroids {
			if v == c {
				taken = true
				break
			}
		}
		if !taken {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return values[rng.Intn(len(values))]
	}
	return candidates[rng.Intn(len(candidates))]
}

func nearest(centroids []float64, v float64) int {
	best := 0
	bestDist := math.Abs(v - centroids[0])
	for i := 1; i < len(centroids); i++ {
		if d := math.Abs(v - centroids[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// recomputeCentroids moves each centroid to the mean of its members. An
// empty cluster keeps its previous position so it can capture points on the
// next assignment pass.
func recomputeCentroids(values []float64, assignments []int, centroids []float64) {
	for c := range centroids {
		members := make([]float64, 0, len(values))
		for i, v := range values {
			if assignments[i] == c {
				members = append(members, v)
			}
		}
		if len(members) == 0 {
			continue
		}
		m, err := stats.Mean(members)
		if err != nil {
			continue
		}
		centroids[c] = m
	}
}
