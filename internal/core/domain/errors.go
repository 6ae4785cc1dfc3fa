package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrTemporary          = errors.New("temporary failure")
	ErrStageFailure       = errors.New("pipeline stage failure")
	ErrPageTimeout        = errors.New("page processing timed out")
	ErrPageNotProcessed   = errors.New("page not processed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
