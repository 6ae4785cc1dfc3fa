package chunking

import (
	"fmt"
	"strings"
	"testing"
	"unicode"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
)

// wordTokenizerFake emits one token per word, each carrying its leading whitespace.
type wordTokenizerFake struct {
	noOffsets bool
	vocab     []string
	ids       map[string]uint
}

func (f *wordTokenizerFake) Encode(text string) ([]ports.Token, error) {
	if f.ids == nil {
		f.ids = map[string]uint{}
	}
	var tokens []ports.Token
	start := 0
	for start < len(text) {
		end := start
		for end < len(text) && unicode.IsSpace(rune(text[end])) {
			end++
		}
		for end < len(text) && !unicode.IsSpace(rune(text[end])) {
			end++
		}
		piece := text[start:end]
		id, ok := f.ids[piece]
		if !ok {
			id = uint(len(f.vocab))
			f.vocab = append(f.vocab, piece)
			f.ids[piece] = id
		}
		tok := ports.Token{ID: id, Start: start, End: end}
		if f.noOffsets {
			tok.Start, tok.End = -1, -1
		}
		tokens = append(tokens, tok)
		start = end
	}
	return tokens, nil
}

func (f *wordTokenizerFake) Decode(ids []uint) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		if int(id) >= len(f.vocab) {
			return "", fmt.Errorf("unknown token %d", id)
		}
		b.WriteString(f.vocab[id])
	}
	return b.String(), nil
}

func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func successPage(number int, typ domain.PageType, content string) domain.ExtractedPage {
	method := domain.MethodNative
	if typ == domain.PageScanned {
		method = domain.MethodVision
	}
	return domain.ExtractedPage{
		PageNumber:       number,
		Type:             typ,
		Status:           domain.PageStatusSuccess,
		Content:          content,
		ProcessingMethod: method,
	}
}

func TestSplitterWindows(t *testing.T) {
	s := NewSplitter(&wordTokenizerFake{}, 500, 100)
	result := &domain.DocumentResult{
		DocumentName: "devis.pdf",
		Pages:        []domain.ExtractedPage{successPage(1, domain.PageNative, words("w", 1200))},
	}

	chunks, err := s.Chunk(result)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantCounts := []int{500, 500, 400}
	wantFirst := []string{"w0", " w400", " w800"}
	for i, chunk := range chunks {
		if chunk.ChunkIndex != i || chunk.ParagraphNumber != i+1 {
			t.Fatalf("chunk %d has index %d paragraph %d", i, chunk.ChunkIndex, chunk.ParagraphNumber)
		}
		if chunk.TokenCount != wantCounts[i] {
			t.Fatalf("chunk %d token count = %d, want %d", i, chunk.TokenCount, wantCounts[i])
		}
		if !strings.HasPrefix(chunk.Text, wantFirst[i]+" ") {
			t.Fatalf("chunk %d starts with %q, want %q", i, chunk.Text[:10], wantFirst[i])
		}
		if chunk.PageNumber != 1 || chunk.IsCrossPage || chunk.SourceDocument != "devis.pdf" {
			t.Fatalf("unexpected chunk metadata: %+v", chunk)
		}
	}
	if !strings.HasSuffix(chunks[2].Text, " w1199") {
		t.Fatalf("expected last chunk to end the document")
	}
}

func TestSplitterCrossPageAndFailedPages(t *testing.T) {
	for _, noOffsets := range []bool{false, true} {
		s := NewSplitter(&wordTokenizerFake{noOffsets: noOffsets}, 8, 2)
		result := &domain.DocumentResult{
			DocumentName: "dossier.pdf",
			Pages: []domain.ExtractedPage{
				successPage(1, domain.PageNative, words("a", 10)),
				domain.FailedPage(2, domain.PageScanned, domain.MethodVision, fmt.Errorf("vision down")),
				successPage(3, domain.PageScanned, words("b", 10)),
			},
		}

		chunks, err := s.Chunk(result)
		if err != nil {
			t.Fatalf("Chunk() error = %v", err)
		}
		if len(chunks) != 3 {
			t.Fatalf("noOffsets=%v: expected 3 chunks, got %d", noOffsets, len(chunks))
		}

		first, middle, last := chunks[0], chunks[1], chunks[2]
		if first.PageNumber != 1 || first.IsCrossPage {
			t.Fatalf("noOffsets=%v: unexpected first chunk %+v", noOffsets, first)
		}
		if !middle.IsCrossPage || middle.PageNumber != 1 {
			t.Fatalf("noOffsets=%v: expected cross-page middle chunk, got %+v", noOffsets, middle)
		}
		if len(middle.SpansPages) != 2 || middle.SpansPages[0] != 1 || middle.SpansPages[1] != 3 {
			t.Fatalf("noOffsets=%v: expected spans [1 3], got %v", noOffsets, middle.SpansPages)
		}
		if last.PageNumber != 3 || last.PageType != domain.PageScanned || last.ProcessingMethod != domain.MethodVision {
			t.Fatalf("noOffsets=%v: unexpected last chunk %+v", noOffsets, last)
		}
		for _, chunk := range chunks {
			for _, p := range append([]int{chunk.PageNumber}, chunk.SpansPages...) {
				if p == 2 {
					t.Fatalf("failed page must not be referenced: %+v", chunk)
				}
			}
		}
	}
}

func TestSplitterOverlapNotSmallerThanSize(t *testing.T) {
	s := NewSplitter(&wordTokenizerFake{}, 10, 15)
	result := &domain.DocumentResult{Pages: []domain.ExtractedPage{successPage(1, domain.PageNative, words("x", 25))}}

	chunks, err := s.Chunk(result)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected full-advance windows, got %d chunks", len(chunks))
	}
	if chunks[2].TokenCount != 5 {
		t.Fatalf("expected 5-token tail, got %d", chunks[2].TokenCount)
	}
}

func TestSplitterTerminationBound(t *testing.T) {
	for _, tc := range []struct{ n, size, overlap int }{
		{1, 500, 100}, {499, 500, 100}, {501, 500, 100}, {1000, 100, 99}, {37, 7, 3},
	} {
		s := NewSplitter(&wordTokenizerFake{}, tc.size, tc.overlap)
		result := &domain.DocumentResult{Pages: []domain.ExtractedPage{successPage(1, domain.PageNative, words("t", tc.n))}}
		chunks, err := s.Chunk(result)
		if err != nil {
			t.Fatalf("Chunk() error = %v", err)
		}
		step := tc.size - tc.overlap
		bound := (tc.n + step - 1) / step
		if len(chunks) == 0 || len(chunks) > bound {
			t.Fatalf("n=%d size=%d overlap=%d: got %d chunks, bound %d", tc.n, tc.size, tc.overlap, len(chunks), bound)
		}
		if last := chunks[len(chunks)-1]; !strings.HasSuffix(last.Text, fmt.Sprintf("t%d", tc.n-1)) {
			t.Fatalf("last chunk does not reach the end of the text")
		}
	}
}

func TestSplitterDegenerateInput(t *testing.T) {
	s := NewSplitter(&wordTokenizerFake{}, 500, 100)
	result := &domain.DocumentResult{Pages: []domain.ExtractedPage{
		successPage(1, domain.PageNative, "   \n\t"),
		domain.FailedPage(2, domain.PageNative, domain.MethodNative, fmt.Errorf("boom")),
	}}

	chunks, err := s.Chunk(result)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected zero chunks, got %d", len(chunks))
	}
}
