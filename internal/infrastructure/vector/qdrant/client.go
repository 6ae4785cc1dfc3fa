package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func hasStatus(err error, code int) bool {
	status, ok := resilience.UpstreamStatus(err)
	return ok && status == code
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// PointID is stable per document and chunk index, so re-indexing a
// document overwrites its previous points.
func PointID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", documentID, chunkIndex))).String()
}

func chunkPayload(doc *domain.Document, chunk domain.Chunk) map[string]any {
	payload := map[string]any{
		"doc_id":            doc.ID,
		"filename":          doc.Filename,
		"source_document":   chunk.SourceDocument,
		"chunk_index":       chunk.ChunkIndex,
		"paragraph_number":  chunk.ParagraphNumber,
		"token_count":       chunk.TokenCount,
		"page_number":       chunk.PageNumber,
		"is_cross_page":     chunk.IsCrossPage,
		"page_type":         string(chunk.PageType),
		"processing_method": chunk.ProcessingMethod,
		"text":              chunk.Text,
	}
	if len(chunk.SpansPages) > 0 {
		payload["spans_pages"] = chunk.SpansPages
	}
	return payload
}

func (c *Client) IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d != %d", len(chunks), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:      PointID(doc.ID, chunk.ChunkIndex),
			Vector:  vectors[i],
			Payload: chunkPayload(doc, chunk),
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.doJSON(ctx, http.MethodPut, url, map[string]any{"points": points}, nil, "upsert")
}

// DeleteDocument drops every point indexed for documentID.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	reqBody := map[string]any{
		"filter": map[string]any{"must": []map[string]any{matchCondition("doc_id", documentID)}},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	err := c.doJSON(ctx, http.MethodPost, url, reqBody, nil, "delete")
	if hasStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.RetrievedChunk, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.doJSON(ctx, http.MethodPost, url, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievedChunk{
			DocumentID:       getStringPayload(r.Payload, "doc_id"),
			Filename:         getStringPayload(r.Payload, "filename"),
			Text:             getStringPayload(r.Payload, "text"),
			Score:            r.Score,
			ChunkIndex:       getIntPayload(r.Payload, "chunk_index"),
			PageNumber:       getIntPayload(r.Payload, "page_number"),
			SpansPages:       getIntsPayload(r.Payload, "spans_pages"),
			IsCrossPage:      r.Payload["is_cross_page"] == true,
			PageType:         domain.PageType(getStringPayload(r.Payload, "page_type")),
			ProcessingMethod: getStringPayload(r.Payload, "processing_method"),
		})
	}
	return out, nil
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

// buildFilter matches a page either as a chunk's primary page or as one of
// the pages a cross-page chunk spans.
func buildFilter(filter domain.SearchFilter) map[string]any {
	var must []map[string]any
	if filter.DocumentID != "" {
		must = append(must, matchCondition("doc_id", filter.DocumentID))
	}
	if filter.PageType != "" {
		must = append(must, matchCondition("page_type", string(filter.PageType)))
	}
	if filter.PageNumber > 0 {
		must = append(must, map[string]any{
			"should": []map[string]any{
				matchCondition("page_number", filter.PageNumber),
				matchCondition("spans_pages", filter.PageNumber),
			},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.doJSON(ctx, http.MethodPut, url, reqBody, nil, "ensure collection")
	// 409 when the collection already exists (depends on version/config).
	if err != nil && !hasStatus(err, http.StatusConflict) {
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewUpstreamError("qdrant", operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	if v, ok := payload[key].(float64); ok {
		return int(v)
	}
	return 0
}

func getIntsPayload(payload map[string]any, key string) []int {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}
