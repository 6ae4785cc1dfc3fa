package nats

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestDocumentMsgCarriesPublishTime(t *testing.T) {
	published := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	msg := newDocumentMsg("documents.ingest", "doc-1", published)

	if string(msg.Data) != "doc-1" || msg.Subject != "documents.ingest" {
		t.Fatalf("unexpected message %+v", msg)
	}
	lag, ok := queueLag(msg, published.Add(1500*time.Millisecond))
	if !ok || lag != 1500*time.Millisecond {
		t.Fatalf("queueLag() = %s, %v", lag, ok)
	}
}

func TestQueueLagWithoutHeader(t *testing.T) {
	if _, ok := queueLag(&nats.Msg{Data: []byte("doc-1")}, time.Now()); ok {
		t.Fatalf("expected no lag without header")
	}
	msg := nats.NewMsg("s")
	msg.Header.Set(publishedAtHeader, "yesterday")
	if _, ok := queueLag(msg, time.Now()); ok {
		t.Fatalf("expected no lag for malformed header")
	}
}

func TestQueueLagClampsClockSkew(t *testing.T) {
	now := time.Now()
	msg := newDocumentMsg("s", "doc-1", now.Add(time.Second))
	lag, ok := queueLag(msg, now)
	if !ok || lag != 0 {
		t.Fatalf("expected clamped zero lag, got %s, %v", lag, ok)
	}
}
