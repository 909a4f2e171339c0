// Package source provides chunked readers for the raw flight weather feed.
// The whole logical dataset may exceed memory, so every source hands rows
// out in bounded chunks.
package source

import (
	"context"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
)

// ChunkSource reads raw observations in bounded chunks. Next returns the
// next chunk, or (nil, io.EOF) once the feed is exhausted. Chunks are at most
// the source's configured chunk size but may be smaller.
type ChunkSource interface {
	Next(ctx context.Context) ([]domain.RawObservation, error)
}
