package ports

import (
	"context"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// Prefetcher is the inbound contract for the RAG fan-out. It never fails;
// total retrieval failure degrades to an empty result.
type Prefetcher interface {
	Prefetch(ctx context.Context, saju, astro domain.ChartPayload, theme, locale string) domain.PrefetchResult
}

// ReadingInitializer runs the heavy per-session prefetch once.
type ReadingInitializer interface {
	Init(ctx context.Context, req domain.ReadingRequest) (*domain.Session, error)
}

// ReadingStreamer produces the processed response text for one turn, pushing
// transport chunks through emit.
type ReadingStreamer interface {
	StreamTurn(ctx context.Context, req domain.ReadingRequest, emit func(chunk string) error) error
}

// SheetIngestor indexes one authored sheet into the vector collections.
type SheetIngestor interface {
	IngestSheet(ctx context.Context, path string) error
}
