package httpadapter

import (
	"context"
	"net/http"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrStageFailure):
		// The upload was a PDF but the pipeline could not open or number it.
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrPageTimeout), domain.IsKind(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
