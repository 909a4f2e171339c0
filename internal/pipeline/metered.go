package pipeline

import (
	"context"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
	"github.com/aeroclimate/takeoff-humidity/internal/observability"
	"github.com/aeroclimate/takeoff-humidity/internal/source"
)

// meteredFeed counts rows flowing out of a feed without changing them.
type meteredFeed struct {
	inner   source.ChunkSource
	metrics *observability.Metrics
}

func meter(inner source.ChunkSource, metrics *observability.Metrics) source.ChunkSource {
	return &meteredFeed{inner: inner, metrics: metrics}
}

func (m *meteredFeed) Next(ctx context.Context) ([]domain.RawObservation, error) {
	chunk, err := m.inner.Next(ctx)
	if err != nil {
		return chunk, err
	}
	m.metrics.RowsRead.Add(float64(len(chunk)))
	for _, obs := range chunk {
		if !obs.HumidityValid {
			m.metrics.RowsWithoutValue.Inc()
		}
	}
	return chunk, nil
}
