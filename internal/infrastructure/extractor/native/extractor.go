// Package native rebuilds pages that carry a usable text layer: positioned
// text lines, ruled tables and captioned images merged in reading order.
package native

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/extractor/pdfdoc"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/imaging"
)

// minImageSide drops placements too thin to hold any visible content (points).
const minImageSide = 1.0

type Settings struct {
	LineTolerance float64
	Tables        TableSettings
	// CropDPI is the resolution of the page render used when an image
	// cannot be decoded from its stream.
	CropDPI float64
}

func DefaultSettings() Settings {
	return Settings{
		LineTolerance: 5,
		Tables: TableSettings{
			SnapTolerance:         3,
			JoinTolerance:         3,
			EdgeMinLength:         3,
			IntersectionTolerance: 3,
		},
		CropDPI: 144,
	}
}

type Extractor struct {
	captioner *Captioner
	renderer  ports.PageRenderer
	settings  Settings
	logger    *slog.Logger
}

func NewExtractor(captioner *Captioner, renderer ports.PageRenderer, settings Settings, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if captioner == nil {
		captioner = NewCaptioner(nil, logger)
	}
	return &Extractor{
		captioner: captioner,
		renderer:  renderer,
		settings:  settings,
		logger:    logger,
	}
}

func (e *Extractor) Extract(ctx context.Context, pdfPath string, pageNumber int, describeImages bool) domain.ExtractedPage {
	page, err := e.extract(ctx, pdfPath, pageNumber, describeImages)
	if err != nil {
		return domain.FailedPage(pageNumber, domain.PageNative, domain.MethodNative, err)
	}
	return page
}

func (e *Extractor) extract(ctx context.Context, pdfPath string, pageNumber int, describeImages bool) (domain.ExtractedPage, error) {
	doc, err := pdfdoc.Open(pdfPath)
	if err != nil {
		return domain.ExtractedPage{}, err
	}
	defer doc.Close()

	page, err := doc.Page(pageNumber)
	if err != nil {
		return domain.ExtractedPage{}, err
	}
	glyphs, err := page.Glyphs()
	if err != nil {
		return domain.ExtractedPage{}, fmt.Errorf("extract text: %w", err)
	}
	graphics, err := page.Graphics()
	if err != nil {
		return domain.ExtractedPage{}, fmt.Errorf("extract graphics: %w", err)
	}

	lines := BuildLines(glyphs, e.settings.LineTolerance)
	tables := DetectTables(graphics.Segments, glyphs, e.settings.Tables, e.settings.LineTolerance)
	if tables == nil {
		tables = []domain.TableElement{}
	}
	images := e.extractImages(ctx, pdfPath, pageNumber, graphics.Images, describeImages)

	return domain.ExtractedPage{
		PageNumber:       pageNumber,
		Type:             domain.PageNative,
		Status:           domain.PageStatusSuccess,
		Content:          MergeReadingOrder(lines, tables, images, e.settings.LineTolerance),
		ProcessingMethod: domain.MethodNative,
		Images:           images,
		Tables:           tables,
	}, nil
}

func (e *Extractor) extractImages(
	ctx context.Context,
	pdfPath string,
	pageNumber int,
	placements []pdfdoc.ImagePlacement,
	describe bool,
) []domain.ImageElement {
	images := make([]domain.ImageElement, 0, len(placements))
	var rendered image.Image
	for _, pl := range placements {
		if pl.BBox.Width() < minImageSide || pl.BBox.Height() < minImageSide {
			continue
		}

		raster, err := pl.Decode()
		if err != nil {
			if rendered == nil {
				rendered, err = e.renderPage(ctx, pdfPath, pageNumber)
				if err != nil {
					e.logger.Warn("image_extraction_failed", "page", pageNumber, "image", pl.Name, "error", err)
					continue
				}
			}
			raster, err = imaging.CropPoints(rendered, pl.BBox, e.settings.CropDPI)
			if err != nil {
				e.logger.Warn("image_extraction_failed", "page", pageNumber, "image", pl.Name, "error", err)
				continue
			}
		}

		description, kind := e.captioner.Describe(ctx, raster, describe)
		images = append(images, domain.ImageElement{
			BBox:        pl.BBox,
			Description: description,
			ImageType:   kind,
		})
	}
	return images
}

func (e *Extractor) renderPage(ctx context.Context, pdfPath string, pageNumber int) (image.Image, error) {
	if e.renderer == nil {
		return nil, fmt.Errorf("no page renderer configured")
	}
	return e.renderer.RenderPage(ctx, pdfPath, pageNumber, e.settings.CropDPI)
}
