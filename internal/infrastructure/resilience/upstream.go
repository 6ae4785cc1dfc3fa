package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

const upstreamBodyLimit = 2048

// UpstreamError is a non-2xx answer from an HTTP dependency (model server,
// vector store).
type UpstreamError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "upstream status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, e.Body)
}

// NewUpstreamError captures the head of the response body for diagnostics.
func NewUpstreamError(service, operation string, resp *http.Response) *UpstreamError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, upstreamBodyLimit))
	return &UpstreamError{
		Service:    service,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(raw)),
	}
}

// UpstreamStatus returns the HTTP status carried by err, if any.
func UpstreamStatus(err error) (int, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode, true
	}
	return 0, false
}

func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ClassifyHTTP is the classifier for JSON-over-HTTP dependencies.
// Rejected requests (4xx other than 408/429) do not count against the
// breaker: an oversized page image says nothing about server health.
func ClassifyHTTP(err error) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{}
	case IsCircuitOpen(err):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}

	if code, ok := UpstreamStatus(err); ok {
		if RetryableStatus(code) {
			return ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return ErrorClassification{}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{RecordFailure: true}
}

// Call runs fn through exec (directly when exec is nil) and tags failures
// that the classifier would retry, or an open breaker, as ErrTemporary so
// callers can map them to 503 or a redelivery.
func Call(
	ctx context.Context,
	exec *Executor,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if classifier == nil {
		classifier = defaultClassifier
	}
	var err error
	if exec == nil {
		err = fn(ctx)
	} else {
		err = exec.Execute(ctx, operation, fn, classifier)
	}
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
