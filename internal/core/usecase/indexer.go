package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
)

const defaultEmbedBatchSize = 32

// ChunkIndexer embeds chunks in batches and replaces a document's vectors.
type ChunkIndexer struct {
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	batchSize int
	logger    *slog.Logger
}

func NewChunkIndexer(embedder ports.Embedder, vectorDB ports.VectorStore, logger *slog.Logger) *ChunkIndexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkIndexer{
		embedder:  embedder,
		vectorDB:  vectorDB,
		batchSize: defaultEmbedBatchSize,
		logger:    logger,
	}
}

func (ix *ChunkIndexer) WithBatchSize(size int) *ChunkIndexer {
	if size > 0 {
		ix.batchSize = size
	}
	return ix
}

// Index deletes every previously indexed chunk of doc before writing the new ones.
func (ix *ChunkIndexer) Index(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	vectors, err := ix.embed(ctx, chunks)
	if err != nil {
		return err
	}

	if err := ix.vectorDB.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete previous chunks: %w", err)
	}
	if len(chunks) == 0 {
		ix.logger.Warn("document_without_text", "document_id", doc.ID)
		return nil
	}
	if err := ix.vectorDB.IndexChunks(ctx, doc, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}
	return nil
}

func (ix *ChunkIndexer) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := min(start+ix.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		batch, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}
