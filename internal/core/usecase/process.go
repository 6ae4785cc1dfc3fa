package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
)

// ChunkObserver records how many chunks a processed document produced.
type ChunkObserver interface {
	ObserveChunks(count int)
}

type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	pipeline  ports.DocumentPipeline
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	batchSize int
	observer  ChunkObserver
	logger    *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	pipeline ports.DocumentPipeline,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:      repo,
		storage:   storage,
		pipeline:  pipeline,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
		batchSize: defaultEmbedBatchSize,
		logger:    logger,
	}
}

// WithEmbedBatchSize caps how many chunk texts go into one embedding call.
func (uc *ProcessDocumentUseCase) WithEmbedBatchSize(size int) *ProcessDocumentUseCase {
	if size > 0 {
		uc.batchSize = size
	}
	return uc
}

func (uc *ProcessDocumentUseCase) WithObserver(observer ChunkObserver) *ProcessDocumentUseCase {
	uc.observer = observer
	return uc
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}

	path, err := uc.storage.LocalPath(ctx, doc.StoragePath)
	if err != nil {
		return fmt.Errorf("resolve stored document: %w", err)
	}

	result := uc.pipeline.Process(ctx, ports.DocumentSource{Path: path, Name: doc.Filename}, func(fraction float64, message string) {
		uc.logger.Debug("document_progress", "document_id", doc.ID, "fraction", fraction, "message", message)
	})
	if result.Status != domain.ResultSuccess {
		return domain.WrapError(domain.ErrStageFailure, "process document", errors.New(strings.Join(result.Errors, "; ")))
	}

	chunks, err := uc.chunker.Chunk(result)
	if err != nil {
		return fmt.Errorf("chunk document: %w", err)
	}

	if err := uc.indexer().Index(ctx, doc, chunks); err != nil {
		return err
	}

	if err := uc.repo.SaveResult(ctx, doc.ID, result, len(chunks)); err != nil {
		return fmt.Errorf("save processing result: %w", err)
	}
	if uc.observer != nil {
		uc.observer.ObserveChunks(len(chunks))
	}

	uc.logger.Info("document_indexed",
		"document_id", doc.ID,
		"document", doc.Filename,
		"pages", result.Summary.TotalPages,
		"failed_pages", len(result.FailedPages()),
		"chunks", len(chunks),
	)
	return nil
}

func (uc *ProcessDocumentUseCase) indexer() *ChunkIndexer {
	return NewChunkIndexer(uc.embedder, uc.vectorDB, uc.logger).WithBatchSize(uc.batchSize)
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
