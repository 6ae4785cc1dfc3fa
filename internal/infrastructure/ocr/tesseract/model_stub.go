//go:build !ocr

package tesseract

import (
	"context"

	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
)

type Model struct{}

func New(string) (*Model, error) {
	return nil, ErrNotEnabled
}

func (m *Model) Close() error {
	return nil
}

func (m *Model) DescribeImage(context.Context, ports.VisionRequest) (string, error) {
	return "", ErrNotEnabled
}
