package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

func TestNewUpstreamErrorKeepsBody(t *testing.T) {
	rec := httptest.NewRecorder()
	http.Error(rec, "model not loaded", http.StatusServiceUnavailable)

	err := NewUpstreamError("ollama", "generate", rec.Result())
	if err.Body != "model not loaded" || err.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected upstream error %+v", err)
	}
	if got := err.Error(); got != "ollama generate status: 503 Service Unavailable: model not loaded" {
		t.Fatalf("Error() = %q", got)
	}
	if code, ok := UpstreamStatus(fmt.Errorf("wrap: %w", err)); !ok || code != http.StatusServiceUnavailable {
		t.Fatalf("UpstreamStatus() = %d, %v", code, ok)
	}
}

func TestClassifyHTTP(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClassification
	}{
		{"canceled", context.Canceled, ErrorClassification{}},
		{"overloaded", &UpstreamError{StatusCode: http.StatusTooManyRequests}, ErrorClassification{Retryable: true, RecordFailure: true}},
		{"image too large", &UpstreamError{StatusCode: http.StatusRequestEntityTooLarge}, ErrorClassification{}},
		{"unknown", errors.New("boom"), ErrorClassification{RecordFailure: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyHTTP(tt.err); got != tt.want {
				t.Fatalf("ClassifyHTTP() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCallMarksRetryableFailuresTemporary(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
	busy := &UpstreamError{Service: "openai", Operation: "embeddings", StatusCode: http.StatusBadGateway}

	err := Call(context.Background(), exec, "openai.embeddings", func(context.Context) error { return busy }, ClassifyHTTP)
	if !domain.IsKind(err, domain.ErrTemporary) || !errors.Is(err, busy) {
		t.Fatalf("expected temporary wrap, got %v", err)
	}

	rejected := &UpstreamError{StatusCode: http.StatusBadRequest}
	err = Call(context.Background(), nil, "openai.embeddings", func(context.Context) error { return rejected }, ClassifyHTTP)
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("rejected requests must not be temporary, got %v", err)
	}
}

func TestBackoffGrowsToCeiling(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     300 * time.Millisecond,
		RetryMultiplier:     2,
	})
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := exec.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %s, want %s", i+1, got, w)
		}
	}
}
