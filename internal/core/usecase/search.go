package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

type SearchUseCase struct {
	embedder ports.Embedder
	vectorDB ports.VectorStore
}

func NewSearchUseCase(embedder ports.Embedder, vectorDB ports.VectorStore) *SearchUseCase {
	return &SearchUseCase{
		embedder: embedder,
		vectorDB: vectorDB,
	}
}

func (uc *SearchUseCase) Search(
	ctx context.Context,
	query string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search chunks", errors.New("query is required"))
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := uc.vectorDB.Search(ctx, queryVector, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("search vector db: %w", err)
	}
	if chunks == nil {
		chunks = []domain.RetrievedChunk{}
	}
	return chunks, nil
}
