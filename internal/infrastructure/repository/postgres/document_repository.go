package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	total_pages INTEGER NOT NULL DEFAULT 0,
	native_pages INTEGER NOT NULL DEFAULT 0,
	scanned_pages INTEGER NOT NULL DEFAULT 0,
	total_images INTEGER NOT NULL DEFAULT 0,
	total_tables INTEGER NOT NULL DEFAULT 0,
	processing_ms BIGINT NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS document_pages (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	page_number INTEGER NOT NULL,
	page_type TEXT NOT NULL,
	status TEXT NOT NULL,
	processing_method TEXT NOT NULL,
	content TEXT NOT NULL,
	images JSONB NOT NULL DEFAULT '[]'::jsonb,
	tables JSONB NOT NULL DEFAULT '[]'::jsonb,
	error_message TEXT,
	PRIMARY KEY (document_id, page_number)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, filename, mime_type, storage_path, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, status, COALESCE(error_message, ''),
	total_pages, native_pages, scanned_pages, total_images, total_tables, processing_ms,
	chunk_count, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var status string
	var processingMS int64

	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &status, &doc.Error,
		&doc.Summary.TotalPages, &doc.Summary.NativePages, &doc.Summary.ScannedPages,
		&doc.Summary.TotalImages, &doc.Summary.TotalTables, &processingMS,
		&doc.ChunkCount, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	doc.Summary.ProcessingTime = time.Duration(processingMS) * time.Millisecond
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireAffected(res, "update document status", id)
}

// SaveResult replaces the stored pages and summary of a document in one transaction.
func (r *DocumentRepository) SaveResult(ctx context.Context, id string, result *domain.DocumentResult, chunkCount int) error {
	if result == nil {
		return domain.WrapError(domain.ErrInvalidInput, "save result", errors.New("nil result"))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin result tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	s := result.Summary
	res, err := tx.ExecContext(ctx, `
UPDATE documents
SET total_pages = $2, native_pages = $3, scanned_pages = $4, total_images = $5, total_tables = $6,
	processing_ms = $7, chunk_count = $8, updated_at = $9
WHERE id = $1
`, id, s.TotalPages, s.NativePages, s.ScannedPages, s.TotalImages, s.TotalTables,
		s.ProcessingTime.Milliseconds(), chunkCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document summary: %w", err)
	}
	if err := requireAffected(res, "save result", id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_pages WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("delete document pages: %w", err)
	}
	for _, page := range result.Pages {
		imagesJSON, err := json.Marshal(nonNilImages(page.Images))
		if err != nil {
			return fmt.Errorf("marshal images: %w", err)
		}
		tablesJSON, err := json.Marshal(nonNilTables(page.Tables))
		if err != nil {
			return fmt.Errorf("marshal tables: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO document_pages (
	document_id, page_number, page_type, status, processing_method, content, images, tables, error_message
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
			id, page.PageNumber, string(page.Type), string(page.Status), page.ProcessingMethod,
			page.Content, imagesJSON, tablesJSON, page.Error,
		)
		if err != nil {
			return fmt.Errorf("insert page %d: %w", page.PageNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListPages(ctx context.Context, id string) ([]domain.ExtractedPage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT page_number, page_type, status, processing_method, content, images, tables, COALESCE(error_message, '')
FROM document_pages
WHERE document_id = $1
ORDER BY page_number ASC
`, id)
	if err != nil {
		return nil, fmt.Errorf("query document pages: %w", err)
	}
	defer rows.Close()

	pages := make([]domain.ExtractedPage, 0)
	for rows.Next() {
		var page domain.ExtractedPage
		var pageType, status string
		var imagesRaw, tablesRaw []byte
		if err := rows.Scan(
			&page.PageNumber, &pageType, &status, &page.ProcessingMethod, &page.Content,
			&imagesRaw, &tablesRaw, &page.Error,
		); err != nil {
			return nil, fmt.Errorf("scan document page: %w", err)
		}
		if err := json.Unmarshal(imagesRaw, &page.Images); err != nil {
			return nil, fmt.Errorf("unmarshal images: %w", err)
		}
		if err := json.Unmarshal(tablesRaw, &page.Tables); err != nil {
			return nil, fmt.Errorf("unmarshal tables: %w", err)
		}
		page.Type = domain.PageType(pageType)
		page.Status = domain.PageStatus(status)
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document pages: %w", err)
	}
	return pages, nil
}

func requireAffected(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id %s", id))
	}
	return nil
}

func nonNilImages(images []domain.ImageElement) []domain.ImageElement {
	if images == nil {
		return []domain.ImageElement{}
	}
	return images
}

func nonNilTables(tables []domain.TableElement) []domain.TableElement {
	if tables == nil {
		return []domain.TableElement{}
	}
	return tables
}
