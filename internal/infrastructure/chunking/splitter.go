package chunking

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
)

const locatePrefixBytes = 64

// Splitter cuts the successful pages of a document into overlapping token
// windows and attributes every window to the pages it overlaps.
type Splitter struct {
	ChunkSize int
	Overlap   int
	tokenizer ports.Tokenizer
}

func NewSplitter(tokenizer ports.Tokenizer, chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
		tokenizer: tokenizer,
	}
}

type pageSpan struct {
	page  domain.ExtractedPage
	start int
	end   int
}

func (s *Splitter) Chunk(result *domain.DocumentResult) ([]domain.Chunk, error) {
	if result == nil {
		return nil, nil
	}
	text, spans := concatenatePages(result.Pages)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	tokens, err := s.tokenizer.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("tokenize document: %w", err)
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	exact := hasOffsets(tokens)

	// overlap >= size would never advance; fall back to a full step.
	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	ids := make([]uint, len(tokens))
	for i, tok := range tokens {
		ids[i] = tok.ID
	}

	out := make([]domain.Chunk, 0, len(tokens)/step+1)
	cursor := 0
	for start := 0; start < len(tokens); start += step {
		end := min(start+s.ChunkSize, len(tokens))

		chunkText, err := s.tokenizer.Decode(ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("decode chunk %d: %w", len(out), err)
		}

		var from, to int
		if exact {
			from, to = tokens[start].Start, tokens[end-1].End
		} else {
			from, to = locate(text, chunkText, cursor, start, len(tokens))
			cursor = from
		}

		out = append(out, buildChunk(result.DocumentName, len(out), chunkText, end-start, pagesFor(spans, from, to)))
		if end == len(tokens) {
			break
		}
	}
	return out, nil
}

func buildChunk(source string, index int, text string, tokenCount int, pages []pageSpan) domain.Chunk {
	primary := pages[0].page
	chunk := domain.Chunk{
		Text:             text,
		ChunkIndex:       index,
		TokenCount:       tokenCount,
		SourceDocument:   source,
		PageNumber:       primary.PageNumber,
		ParagraphNumber:  index + 1,
		PageType:         primary.Type,
		ProcessingMethod: primary.ProcessingMethod,
	}
	if len(pages) > 1 {
		chunk.IsCrossPage = true
		chunk.SpansPages = make([]int, 0, len(pages))
		for _, p := range pages {
			chunk.SpansPages = append(chunk.SpansPages, p.page.PageNumber)
		}
	}
	return chunk
}

// concatenatePages joins successful, non-empty pages with a single space and
// records each page's byte range in the joined text.
func concatenatePages(pages []domain.ExtractedPage) (string, []pageSpan) {
	ordered := slices.Clone(pages)
	slices.SortStableFunc(ordered, func(a, b domain.ExtractedPage) int {
		return cmp.Compare(a.PageNumber, b.PageNumber)
	})

	var b strings.Builder
	spans := make([]pageSpan, 0, len(ordered))
	for _, page := range ordered {
		if !page.Succeeded() || strings.TrimSpace(page.Content) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		start := b.Len()
		b.WriteString(page.Content)
		spans = append(spans, pageSpan{page: page, start: start, end: b.Len()})
	}
	return b.String(), spans
}

func hasOffsets(tokens []ports.Token) bool {
	for _, tok := range tokens {
		if tok.Start < 0 || tok.End < tok.Start {
			return false
		}
	}
	return true
}

// locate estimates a chunk's byte range when the tokenizer reports no
// offsets: a prefix search from the previous chunk start, then a position
// proportional to the token index. The proportional estimate can attribute a
// chunk near a page boundary to the neighbouring page.
func locate(text, chunkText string, from, tokenStart, tokenTotal int) (int, int) {
	prefix := strings.TrimSpace(chunkText)
	if len(prefix) > locatePrefixBytes {
		prefix = prefix[:locatePrefixBytes]
	}
	if prefix != "" && from <= len(text) {
		if idx := strings.Index(text[from:], prefix); idx >= 0 {
			start := from + idx
			return start, min(len(text), start+len(chunkText))
		}
	}
	start := int(float64(tokenStart) / float64(tokenTotal) * float64(len(text)))
	return start, min(len(text), start+len(chunkText))
}

// pagesFor returns the pages overlapping [from, to) in page order. A range
// that falls only on separators resolves to the closest preceding page.
func pagesFor(spans []pageSpan, from, to int) []pageSpan {
	var hits []pageSpan
	for _, span := range spans {
		if from < span.end && to > span.start {
			hits = append(hits, span)
		}
	}
	if len(hits) > 0 {
		return hits
	}
	nearest := spans[0]
	for _, span := range spans {
		if span.start <= from {
			nearest = span
		}
	}
	return []pageSpan{nearest}
}
