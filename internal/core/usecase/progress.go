package usecase

import (
	"fmt"

	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
)

const (
	progressStamping    = 0.05
	progressClassifying = 0.10
	progressExtracting  = 0.15
	progressPagesCap    = 0.90
	progressAggregating = 0.95
	progressDone        = 1.0
)

type progressEvent struct {
	fraction   float64
	message    string
	pageDone   bool
	totalPages int
}

// progressTracker serializes progress reports through a single consumer
// goroutine; that goroutine alone owns the page counter and the last
// reported fraction.
type progressTracker struct {
	events chan progressEvent
	done   chan struct{}
}

func newProgressTracker(fn ports.ProgressFunc) *progressTracker {
	t := &progressTracker{
		events: make(chan progressEvent, 16),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

func (t *progressTracker) run(fn ports.ProgressFunc) {
	defer close(t.done)

	last := 0.0
	pagesDone := 0
	for ev := range t.events {
		fraction, message := ev.fraction, ev.message
		if ev.pageDone {
			pagesDone++
			fraction = pageProgress(pagesDone, ev.totalPages)
			message = fmt.Sprintf("Processed page %d/%d", pagesDone, ev.totalPages)
		}
		if fraction < last {
			fraction = last
		}
		last = fraction
		if fn != nil {
			fn(fraction, message)
		}
	}
}

func (t *progressTracker) report(fraction float64, message string) {
	t.events <- progressEvent{fraction: fraction, message: message}
}

func (t *progressTracker) pageDone(totalPages int) {
	t.events <- progressEvent{pageDone: true, totalPages: totalPages}
}

// close flushes pending events; no report may follow it.
func (t *progressTracker) close() {
	close(t.events)
	<-t.done
}

func pageProgress(done, total int) float64 {
	if total <= 0 {
		return progressExtracting
	}
	fraction := progressExtracting + (progressPagesCap-progressExtracting)*float64(done)/float64(total)
	if fraction > progressPagesCap {
		return progressPagesCap
	}
	return fraction
}
