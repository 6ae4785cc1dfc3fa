package chunking

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
)

const DefaultEncoding = string(tokenizer.Cl100kBase)

// TiktokenTokenizer wraps a BPE codec and derives byte offsets from the
// token strings it returns.
type TiktokenTokenizer struct {
	codec tokenizer.Codec
}

func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	codec, err := tokenizer.Get(tokenizer.Encoding(encoding))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{codec: codec}, nil
}

func (t *TiktokenTokenizer) Encode(text string) ([]ports.Token, error) {
	ids, pieces, err := t.codec.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("encode text: %w", err)
	}

	tokens := make([]ports.Token, len(ids))
	offset := 0
	for i, id := range ids {
		tokens[i] = ports.Token{ID: id, Start: offset}
		if i < len(pieces) {
			offset += len(pieces[i])
		}
		tokens[i].End = offset
	}

	// Offsets are only trusted when the pieces tile the input exactly.
	if len(pieces) != len(ids) || offset != len(text) {
		for i := range tokens {
			tokens[i].Start, tokens[i].End = -1, -1
		}
	}
	return tokens, nil
}

func (t *TiktokenTokenizer) Decode(ids []uint) (string, error) {
	text, err := t.codec.Decode(ids)
	if err != nil {
		return "", fmt.Errorf("decode tokens: %w", err)
	}
	return text, nil
}
