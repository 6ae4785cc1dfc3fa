//go:build ocr

package tesseract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
)

// Model serializes calls: one Tesseract handle is not safe for concurrent use.
type Model struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func New(language string) (*Model, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(languages(language)...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ocr: set language: %w", err)
	}
	return &Model{client: client}, nil
}

func (m *Model) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

func (m *Model) DescribeImage(ctx context.Context, req ports.VisionRequest) (string, error) {
	data, err := decodeImage(req.ImageBase64)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("ocr: set image: %w", err)
	}
	text, err := m.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognize: %w", err)
	}
	return strings.TrimSpace(text), nil
}
