// Package tesseract serves vision requests with a local Tesseract OCR engine.
// It ignores prompts and returns the recognized text, so scanned pages can be
// transcribed offline. Build with -tags ocr to link libtesseract.
package tesseract

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrNotEnabled is returned by builds without the ocr tag.
var ErrNotEnabled = errors.New("tesseract ocr not enabled; rebuild with -tags ocr")

const DefaultLanguage = "fra"

func decodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("ocr: empty image")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("ocr: decode image: %w", err)
	}
	return data, nil
}

func languages(language string) []string {
	language = strings.TrimSpace(language)
	if language == "" {
		language = DefaultLanguage
	}
	return strings.Split(language, "+")
}
