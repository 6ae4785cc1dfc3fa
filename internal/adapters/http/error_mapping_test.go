package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("empty body")), http.StatusBadRequest},
		{"not a pdf", domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{"missing document", fmt.Errorf("get: %w", domain.ErrDocumentNotFound), http.StatusNotFound},
		{"stage failure", domain.WrapError(domain.ErrStageFailure, "process document", errors.New("stamping: bad xref")), http.StatusUnprocessableEntity},
		{"page timeout", domain.WrapError(domain.ErrPageTimeout, "extract page", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"temporary", domain.WrapError(domain.ErrTemporary, "ollama.embed", errors.New("503")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapErrorToHTTPStatus(tt.err); got != tt.want {
				t.Fatalf("mapErrorToHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
