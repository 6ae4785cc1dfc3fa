package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/pdf-ingestion/internal/config"
	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
	"github.com/kirillkom/pdf-ingestion/internal/observability/metrics"
)

const (
	serviceName          = "api"
	xlsxContentType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultUploadLimitMB = 64
)

type Router struct {
	cfg      config.Config
	ingestUC ports.DocumentIngestor
	searchUC ports.ChunkSearcher
	docs     ports.DocumentReader
	report   ports.ReportWriter
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingestUC ports.DocumentIngestor,
	searchUC ports.ChunkSearcher,
	docs ports.DocumentReader,
	report ports.ReportWriter,
) *Router {
	return &Router{
		cfg:      cfg,
		ingestUC: ingestUC,
		searchUC: searchUC,
		docs:     docs,
		report:   report,
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(serviceName, next)
		})
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/healthz", rt.healthz)
	r.Group(func(r chi.Router) {
		r.Use(
			backpressureMiddleware(rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond),
			rateLimitMiddleware(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst),
		)
		r.Post("/v1/documents", rt.uploadDocument)
		r.Get("/v1/documents/{documentID}", rt.getDocumentByID)
		r.Get("/v1/documents/{documentID}/pages", rt.listPages)
		r.Get("/v1/documents/{documentID}/report.xlsx", rt.downloadReport)
		r.Post("/v1/search", rt.search)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	limitMB := rt.cfg.UploadMaxMB
	if limitMB <= 0 {
		limitMB = defaultUploadLimitMB
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(limitMB)<<20)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", limitMB))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.ingestUC.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, err)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.docs.GetByID(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type pageSummary struct {
	PageNumber       int               `json:"page_number"`
	Type             domain.PageType   `json:"type"`
	Status           domain.PageStatus `json:"status"`
	ProcessingMethod string            `json:"processing_method"`
	Images           int               `json:"images"`
	Tables           int               `json:"tables"`
	ContentLength    int               `json:"content_length"`
	Error            string            `json:"error,omitempty"`
}

func (rt *Router) listPages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	if _, err := rt.docs.GetByID(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	pages, err := rt.docs.ListPages(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]pageSummary, 0, len(pages))
	for _, p := range pages {
		out = append(out, pageSummary{
			PageNumber:       p.PageNumber,
			Type:             p.Type,
			Status:           p.Status,
			ProcessingMethod: p.ProcessingMethod,
			Images:           len(p.Images),
			Tables:           len(p.Tables),
			ContentLength:    len([]rune(p.Content)),
			Error:            p.Error,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "pages": out})
}

func (rt *Router) downloadReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	pages, err := rt.docs.ListPages(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := rt.report.WriteReport(&buf, doc, pages); err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_report.xlsx"`, doc.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type searchRequest struct {
	Query      string `json:"query"`
	Limit      int    `json:"limit"`
	DocumentID string `json:"document_id"`
	PageNumber int    `json:"page_number"`
	PageType   string `json:"page_type"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	pageType := domain.PageType(req.PageType)
	switch pageType {
	case "", domain.PageNative, domain.PageScanned:
	default:
		writeError(w, http.StatusBadRequest, "page_type must be native or scanned")
		return
	}

	started := time.Now()
	chunks, err := rt.searchUC.Search(r.Context(), req.Query, req.Limit, domain.SearchFilter{
		DocumentID: req.DocumentID,
		PageNumber: req.PageNumber,
		PageType:   pageType,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(serviceName, len(chunks), time.Since(started))
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, mapErrorToHTTPStatus(err), err.Error())
}
