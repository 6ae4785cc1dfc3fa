package domain

// Chunk is a token window over the concatenated successful pages of a document.
type Chunk struct {
	Text             string   `json:"text"`
	ChunkIndex       int      `json:"chunk_index"`
	TokenCount       int      `json:"token_count"`
	SourceDocument   string   `json:"source_document"`
	PageNumber       int      `json:"page_number"`
	SpansPages       []int    `json:"spans_pages,omitempty"`
	IsCrossPage      bool     `json:"is_cross_page"`
	ParagraphNumber  int      `json:"paragraph_number"`
	PageType         PageType `json:"page_type"`
	ProcessingMethod string   `json:"processing_method"`
}
