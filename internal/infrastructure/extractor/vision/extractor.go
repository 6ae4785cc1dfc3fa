// Package vision transcribes scanned pages with a vision-capable model.
package vision

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/extractor/native"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/imaging"
)

const (
	DefaultDPI       = 200
	DefaultMaxSide   = 1024
	DefaultMaxTokens = 4000
	temperature      = 0.1
)

var elementPattern = regexp.MustCompile(`\[(TABLEAU|SIGNATURE|CACHET|LOGO): ([^\]]+)\]`)

type Settings struct {
	DPI       float64
	MaxWidth  int
	MaxHeight int
	MaxTokens int
}

func DefaultSettings() Settings {
	return Settings{
		DPI:       DefaultDPI,
		MaxWidth:  DefaultMaxSide,
		MaxHeight: DefaultMaxSide,
		MaxTokens: DefaultMaxTokens,
	}
}

type Extractor struct {
	renderer ports.PageRenderer
	model    ports.VisionModel
	settings Settings
	logger   *slog.Logger
}

func NewExtractor(renderer ports.PageRenderer, model ports.VisionModel, settings Settings, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultSettings()
	if settings.DPI <= 0 {
		settings.DPI = defaults.DPI
	}
	if settings.MaxWidth <= 0 {
		settings.MaxWidth = defaults.MaxWidth
	}
	if settings.MaxHeight <= 0 {
		settings.MaxHeight = defaults.MaxHeight
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = defaults.MaxTokens
	}
	return &Extractor{
		renderer: renderer,
		model:    model,
		settings: settings,
		logger:   logger,
	}
}

func (e *Extractor) Extract(ctx context.Context, pdfPath string, pageNumber int, hint, language string) domain.ExtractedPage {
	page, err := e.extract(ctx, pdfPath, pageNumber, hint, language)
	if err != nil {
		return domain.FailedPage(pageNumber, domain.PageScanned, domain.MethodVision, err)
	}
	return page
}

func (e *Extractor) extract(ctx context.Context, pdfPath string, pageNumber int, hint, language string) (domain.ExtractedPage, error) {
	if e.renderer == nil || e.model == nil {
		return domain.ExtractedPage{}, fmt.Errorf("vision extraction is not configured")
	}
	raster, err := e.renderer.RenderPage(ctx, pdfPath, pageNumber, e.settings.DPI)
	if err != nil {
		return domain.ExtractedPage{}, fmt.Errorf("render page: %w", err)
	}
	raster = imaging.FitWithin(raster, e.settings.MaxWidth, e.settings.MaxHeight)
	encoded, err := imaging.EncodePNGBase64(raster)
	if err != nil {
		return domain.ExtractedPage{}, err
	}

	answer, err := e.model.DescribeImage(ctx, ports.VisionRequest{
		Prompt:      BuildPrompt(hint, language),
		ImageBase64: encoded,
		MimeType:    "image/png",
		Detail:      ports.DetailHigh,
		MaxTokens:   e.settings.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return domain.ExtractedPage{}, fmt.Errorf("vision model: %w", err)
	}

	content := strings.TrimSpace(answer)
	if native.IsRefusal(content) {
		width, height := imaging.Size(raster)
		e.logger.Warn("vision_refusal", "page", pageNumber, "width", width, "height", height)
		content = fmt.Sprintf("[IMAGE: Page numérisée %d (%dx%d pixels), contenu non transcrit]", pageNumber, width, height)
	}

	tables, images := ParseElements(content)
	return domain.ExtractedPage{
		PageNumber:       pageNumber,
		Type:             domain.PageScanned,
		Status:           domain.PageStatusSuccess,
		Content:          content,
		ProcessingMethod: domain.MethodVision,
		Images:           images,
		Tables:           tables,
	}, nil
}

// ParseElements collects the bracketed tags of a transcription. Tables
// become table elements; signatures, stamps and logos become image
// elements in the order they appear. Tags stay in the text.
func ParseElements(content string) ([]domain.TableElement, []domain.ImageElement) {
	tables := []domain.TableElement{}
	images := []domain.ImageElement{}
	for _, m := range elementPattern.FindAllStringSubmatch(content, -1) {
		description := strings.TrimSpace(m[2])
		switch m[1] {
		case "TABLEAU":
			tables = append(tables, domain.TableElement{Rows: [][]string{}, Description: description})
		case "SIGNATURE":
			images = append(images, domain.ImageElement{Description: description, ImageType: domain.ImageSignature})
		case "CACHET":
			images = append(images, domain.ImageElement{Description: description, ImageType: domain.ImageStamp})
		case "LOGO":
			images = append(images, domain.ImageElement{Description: description, ImageType: domain.ImageLogo})
		}
	}
	return tables, images
}
