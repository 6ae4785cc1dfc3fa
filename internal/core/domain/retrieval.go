package domain

type SearchFilter struct {
	DocumentID string
	PageNumber int
	PageType   PageType
}

// RetrievedChunk is a chunk returned by a vector search together with its page metadata.
type RetrievedChunk struct {
	DocumentID       string   `json:"document_id"`
	Filename         string   `json:"filename"`
	Text             string   `json:"text"`
	Score            float64  `json:"score"`
	ChunkIndex       int      `json:"chunk_index"`
	PageNumber       int      `json:"page_number"`
	SpansPages       []int    `json:"spans_pages,omitempty"`
	IsCrossPage      bool     `json:"is_cross_page"`
	PageType         PageType `json:"page_type"`
	ProcessingMethod string   `json:"processing_method"`
}
