package ports

import (
	"context"
	"image"
	"io"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, result *domain.DocumentResult, chunkCount int) error
	ListPages(ctx context.Context, id string) ([]domain.ExtractedPage, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// LocalPath returns a filesystem path readers can open directly.
	LocalPath(ctx context.Context, key string) (string, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// PageStamper burns a "name - Page p/N" label onto every page of a copy of src.
type PageStamper interface {
	Stamp(ctx context.Context, srcPath, dstPath, label string) (int, error)
}

// PageAnalyzer classifies every page of a document, in page order.
type PageAnalyzer interface {
	AnalyzeDocument(ctx context.Context, pdfPath string) ([]domain.PageClassification, error)
}

// NativeExtractor reconstructs a page from its embedded text, vector lines and images.
// Failures are reported through the returned page, never as an error.
type NativeExtractor interface {
	Extract(ctx context.Context, pdfPath string, pageNumber int, describeImages bool) domain.ExtractedPage
}

// VisionExtractor transcribes a rendered page with a vision model.
type VisionExtractor interface {
	Extract(ctx context.Context, pdfPath string, pageNumber int, hint, language string) domain.ExtractedPage
}

// PageRenderer rasterizes one page (1-based) at the given resolution.
type PageRenderer interface {
	RenderPage(ctx context.Context, pdfPath string, pageNumber int, dpi float64) (image.Image, error)
}

type ImageDetail string

const (
	DetailLow  ImageDetail = "low"
	DetailHigh ImageDetail = "high"
)

type VisionRequest struct {
	Prompt      string
	ImageBase64 string
	MimeType    string
	Detail      ImageDetail
	MaxTokens   int
	Temperature float64
}

// VisionModel answers a prompt about a single image.
type VisionModel interface {
	DescribeImage(ctx context.Context, req VisionRequest) (string, error)
}

// Token is one tokenizer unit and its byte range in the encoded text.
// Start and End are -1 when the tokenizer cannot report offsets.
type Token struct {
	ID    uint
	Start int
	End   int
}

type Tokenizer interface {
	Encode(text string) ([]Token, error)
	Decode(ids []uint) (string, error)
}

// ProgressFunc receives monotonically non-decreasing fractions in [0,1].
type ProgressFunc func(fraction float64, message string)

// PageObserver records per-page pipeline outcomes.
type PageObserver interface {
	ObservePage(pageType domain.PageType, status domain.PageStatus, seconds float64)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits a processed document into retrieval chunks.
type Chunker interface {
	Chunk(result *domain.DocumentResult) ([]domain.Chunk, error)
}

// VectorStore indexes chunks and performs semantic search.
type VectorStore interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error
	DeleteDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
}

// ReportWriter renders a processing report for a document.
type ReportWriter interface {
	WriteReport(w io.Writer, doc *domain.Document, pages []domain.ExtractedPage) error
}
