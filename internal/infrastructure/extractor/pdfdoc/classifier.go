package pdfdoc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

const DefaultTextThreshold = 50

// PageProbe exposes what classification needs to know about one page.
type PageProbe interface {
	Number() int
	PlainText() (string, error)
	HasCharPositions() (bool, error)
}

// Classifier decides per page whether the embedded text layer is usable
// (native) or the page must go through OCR (scanned).
type Classifier struct {
	textThreshold int
	logger        *slog.Logger
}

func NewClassifier(textThreshold int, logger *slog.Logger) *Classifier {
	if textThreshold <= 0 {
		textThreshold = DefaultTextThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{textThreshold: textThreshold, logger: logger}
}

func (c *Classifier) Classify(page PageProbe) domain.PageClassification {
	text, err := page.PlainText()
	if err != nil {
		return failedClassification(page.Number(), err)
	}

	length := utf8.RuneCountInString(strings.TrimSpace(text))
	if length < c.textThreshold {
		confidence := 0.7
		if length == 0 {
			confidence = 0.9
		}
		return domain.PageClassification{
			PageNumber:     page.Number(),
			Classification: domain.PageScanned,
			Confidence:     confidence,
			Reason:         fmt.Sprintf("only %d characters of embedded text", length),
			TextLength:     length,
		}
	}

	hasChars, err := page.HasCharPositions()
	if err != nil {
		return failedClassification(page.Number(), err)
	}
	confidence, reason := 0.6, "embedded text without character positions"
	if hasChars {
		confidence, reason = 0.95, "embedded text with character positions"
	}
	return domain.PageClassification{
		PageNumber:     page.Number(),
		Classification: domain.PageNative,
		Confidence:     confidence,
		Reason:         reason,
		TextLength:     length,
	}
}

// AnalyzeDocument classifies every page in order. A page that cannot be read
// is reported as an error classification; only an unreadable document fails.
func (c *Classifier) AnalyzeDocument(ctx context.Context, pdfPath string) ([]domain.PageClassification, error) {
	doc, err := Open(pdfPath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	total := doc.NumPages()
	out := make([]domain.PageClassification, 0, total)
	for number := 1; number <= total; number++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analyze document: %w", err)
		}
		page, err := doc.Page(number)
		if err != nil {
			out = append(out, failedClassification(number, err))
			continue
		}
		out = append(out, c.Classify(page))
	}

	c.logger.Debug("document_analyzed", "path", pdfPath, "pages", total)
	return out, nil
}

func failedClassification(pageNumber int, err error) domain.PageClassification {
	return domain.PageClassification{
		PageNumber:     pageNumber,
		Classification: domain.PageError,
		Confidence:     0,
		Reason:         err.Error(),
	}
}
