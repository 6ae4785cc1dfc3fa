package domain

import "time"

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
)

type DocumentSummary struct {
	TotalPages     int           `json:"total_pages"`
	ScannedPages   int           `json:"scanned_pages"`
	NativePages    int           `json:"native_pages"`
	TotalImages    int           `json:"total_images"`
	TotalTables    int           `json:"total_tables"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// DocumentResult aggregates every page of one pipeline run. Errors only holds
// stage failures; page failures stay on their ExtractedPage.
type DocumentResult struct {
	DocumentName string          `json:"document_name"`
	Pages        []ExtractedPage `json:"pages"`
	Summary      DocumentSummary `json:"summary"`
	Status       ResultStatus    `json:"status"`
	Errors       []string        `json:"errors,omitempty"`
}

func (r *DocumentResult) FailedPages() []ExtractedPage {
	var failed []ExtractedPage
	for _, p := range r.Pages {
		if !p.Succeeded() {
			failed = append(failed, p)
		}
	}
	return failed
}
