package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/pdf-ingestion/internal/config"
	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

type ingestErrFake struct {
	err error
}

func (f ingestErrFake) Upload(context.Context, string, string, io.Reader) (*domain.Document, error) {
	return nil, f.err
}

type searchFake struct {
	err    error
	filter domain.SearchFilter
}

func (f *searchFake) Search(_ context.Context, _ string, _ int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return []domain.RetrievedChunk{{DocumentID: "doc-1", Text: "chunk", PageNumber: filter.PageNumber}}, nil
}

type docsFake struct {
	err      error
	pagesErr error
}

func (f docsFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: "doc-1", Filename: "devis.pdf", MimeType: "application/pdf", StoragePath: "a", Status: domain.StatusReady}, nil
}

func (f docsFake) ListPages(context.Context, string) ([]domain.ExtractedPage, error) {
	if f.pagesErr != nil {
		return nil, f.pagesErr
	}
	return []domain.ExtractedPage{
		{PageNumber: 1, Type: domain.PageNative, Status: domain.PageStatusSuccess, ProcessingMethod: domain.MethodNative, Content: "Été"},
		domain.FailedPage(2, domain.PageScanned, domain.MethodVision, errors.New("vision timeout")),
	}, nil
}

type reportFake struct{}

func (reportFake) WriteReport(w io.Writer, doc *domain.Document, pages []domain.ExtractedPage) error {
	_, err := io.WriteString(w, "xlsx:"+doc.ID)
	return err
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, ingestSuccessFake{}, &searchFake{}, docsFake{}, reportFake{}).Handler()
}

func TestSearchMapsDomainInvalidInputTo400(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		nil,
		&searchFake{err: domain.WrapError(domain.ErrInvalidInput, "search", errors.New("bad query"))},
		docsFake{},
		reportFake{},
	).Handler()

	payload, _ := json.Marshal(map[string]any{"query": "test"})
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchMapsTemporaryTo503(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		nil,
		&searchFake{err: domain.WrapError(domain.ErrTemporary, "embed", errors.New("ollama 503"))},
		docsFake{},
		reportFake{},
	).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewBufferString(`{"query":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		nil,
		&searchFake{},
		docsFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing"))},
		reportFake{},
	).Handler()

	for _, path := range []string{"/v1/documents/missing", "/v1/documents/missing/pages", "/v1/documents/missing/report.xlsx"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)

		if res.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, res.Code)
		}
	}
}

func TestUploadMapsUnsupportedFormatTo415(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		ingestErrFake{err: domain.WrapError(domain.ErrUnsupportedFormat, "upload", errors.New("not a pdf"))},
		&searchFake{},
		docsFake{},
		reportFake{},
	).Handler()

	body, contentType := multipartBody(t, "notes.txt", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", res.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(config.Config{})
	req := httptest.NewRequest(http.MethodDelete, "/v1/documents/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
