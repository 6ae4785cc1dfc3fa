package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

// DocumentSource is a local PDF and the name used for labels and chunk metadata.
type DocumentSource struct {
	Path string
	Name string
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentPipeline runs the page pipeline over one local PDF.
type DocumentPipeline interface {
	Process(ctx context.Context, src DocumentSource, progress ProgressFunc) *domain.DocumentResult
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListPages(ctx context.Context, id string) ([]domain.ExtractedPage, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// ChunkSearcher retrieves chunks relevant to a query.
type ChunkSearcher interface {
	Search(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
}
