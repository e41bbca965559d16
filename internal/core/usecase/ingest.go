package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

const ingestBatchSize = 64

// Ingestor indexes an authored workbook into the cross and graph-node
// collections. Triggered by queue events from the worker.
type Ingestor struct {
	factory  ports.VectorStoreFactory
	embedder ports.Embedder
	sheets   ports.SheetReader
	logger   *slog.Logger
}

func NewIngestor(factory ports.VectorStoreFactory, embedder ports.Embedder, sheets ports.SheetReader, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{factory: factory, embedder: embedder, sheets: sheets, logger: logger}
}

// IngestSheet reads both sheets and upserts them. Record ids are stable, so
// re-ingesting the same workbook is idempotent.
func (s *Ingestor) IngestSheet(ctx context.Context, path string) error {
	cards, err := s.sheets.ReadFusionCards(path)
	if err != nil {
		return fmt.Errorf("read fusion cards: %w", err)
	}
	nodes, err := s.sheets.ReadGraphNodes(path)
	if err != nil {
		return fmt.Errorf("read graph nodes: %w", err)
	}
	if len(cards) == 0 && len(nodes) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "sheet ingest", fmt.Errorf("workbook %s has no usable rows", path))
	}

	if err := s.upsert(ctx, domain.CrossCollection, cards); err != nil {
		return err
	}
	if err := s.upsert(ctx, domain.GraphNodesCollection, nodes); err != nil {
		return err
	}

	s.logger.Info("sheet ingested",
		slog.String("path", path),
		slog.Int("fusion_cards", len(cards)),
		slog.Int("graph_nodes", len(nodes)))
	return nil
}

func (s *Ingestor) upsert(ctx context.Context, collection string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	store, err := s.factory.Store(collection)
	if err != nil {
		return err
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %s: %w", collection, err)
	}
	return store.Upsert(ctx, records, vectors, ingestBatchSize)
}
