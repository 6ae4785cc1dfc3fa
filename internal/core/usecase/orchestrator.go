package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
)

const (
	defaultPageWorkers = 5
	defaultPageTimeout = 3 * time.Minute
)

type OrchestratorConfig struct {
	WorkDir        string
	Workers        int
	PageTimeout    time.Duration
	DescribeImages bool
	Language       string
	VisionHint     string
}

// DocumentOrchestrator drives one document through
// stamping, classification, bounded parallel page extraction and aggregation.
type DocumentOrchestrator struct {
	stamper  ports.PageStamper
	analyzer ports.PageAnalyzer
	native   ports.NativeExtractor
	vision   ports.VisionExtractor
	observer ports.PageObserver
	cfg      OrchestratorConfig
	logger   *slog.Logger
}

func NewDocumentOrchestrator(
	stamper ports.PageStamper,
	analyzer ports.PageAnalyzer,
	native ports.NativeExtractor,
	vision ports.VisionExtractor,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *DocumentOrchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultPageWorkers
	}
	if cfg.PageTimeout == 0 {
		cfg.PageTimeout = defaultPageTimeout
	}
	if cfg.Language == "" {
		cfg.Language = "French"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentOrchestrator{
		stamper:  stamper,
		analyzer: analyzer,
		native:   native,
		vision:   vision,
		cfg:      cfg,
		logger:   logger,
	}
}

// WithObserver attaches per-page metrics recording.
func (o *DocumentOrchestrator) WithObserver(observer ports.PageObserver) *DocumentOrchestrator {
	o.observer = observer
	return o
}

func (o *DocumentOrchestrator) Process(ctx context.Context, src ports.DocumentSource, progress ports.ProgressFunc) *domain.DocumentResult {
	started := time.Now()
	name := src.Name
	if name == "" {
		name = filepath.Base(src.Path)
	}
	result := &domain.DocumentResult{
		DocumentName: name,
		Pages:        []domain.ExtractedPage{},
	}

	tracker := newProgressTracker(progress)
	defer tracker.close()

	tracker.report(progressStamping, "Numbering pages")
	stamped, cleanup, err := o.stamp(ctx, src.Path, name)
	if err != nil {
		return o.fail(result, tracker, "stamping", err, started)
	}
	defer cleanup()

	tracker.report(progressClassifying, "Analyzing document structure")
	classifications, err := o.analyzer.AnalyzeDocument(ctx, stamped)
	if err != nil {
		return o.fail(result, tracker, "classification", err, started)
	}

	tracker.report(progressExtracting, fmt.Sprintf("Extracting %d pages", len(classifications)))
	result.Pages = o.extractPages(ctx, stamped, classifications, tracker)

	tracker.report(progressAggregating, "Aggregating results")
	result.Summary = summarize(classifications, result.Pages, time.Since(started))
	result.Status = domain.ResultSuccess

	o.logger.Info("document_processed",
		"document", name,
		"pages", result.Summary.TotalPages,
		"native_pages", result.Summary.NativePages,
		"scanned_pages", result.Summary.ScannedPages,
		"failed_pages", len(result.FailedPages()),
		"duration_ms", result.Summary.ProcessingTime.Milliseconds(),
	)
	tracker.report(progressDone, "Processing complete")
	return result
}

// stamp writes the numbered copy into a run-scoped directory under WorkDir,
// so runs over files with the same name never share a path. The returned
// cleanup removes that directory.
func (o *DocumentOrchestrator) stamp(ctx context.Context, srcPath, name string) (string, func(), error) {
	if err := os.MkdirAll(o.cfg.WorkDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create work dir: %w", err)
	}
	runDir, err := os.MkdirTemp(o.cfg.WorkDir, "numbered-*")
	if err != nil {
		return "", nil, fmt.Errorf("create run dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(runDir); err != nil {
			o.logger.Warn("work_dir_cleanup_failed", "dir", runDir, "error", err)
		}
	}

	stem := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	dst := filepath.Join(runDir, stem+"_numbered.pdf")
	if _, err := o.stamper.Stamp(ctx, srcPath, dst, name); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("stamp page numbers: %w", err)
	}
	return dst, cleanup, nil
}

func (o *DocumentOrchestrator) fail(
	result *domain.DocumentResult,
	tracker *progressTracker,
	stage string,
	err error,
	started time.Time,
) *domain.DocumentResult {
	wrapped := domain.WrapError(domain.ErrStageFailure, stage, err)
	o.logger.Error("document_stage_failed", "document", result.DocumentName, "stage", stage, "error", err)

	result.Status = domain.ResultError
	result.Errors = append(result.Errors, wrapped.Error())
	result.Summary = domain.DocumentSummary{ProcessingTime: time.Since(started)}
	tracker.report(0, fmt.Sprintf("Processing failed during %s", stage))
	return result
}

func (o *DocumentOrchestrator) extractPages(
	ctx context.Context,
	pdfPath string,
	classifications []domain.PageClassification,
	tracker *progressTracker,
) []domain.ExtractedPage {
	total := len(classifications)
	pages := make([]domain.ExtractedPage, total)

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Workers)
	for i, cls := range classifications {
		// Dispatched pages run to completion; cancellation only stops new submissions.
		if err := ctx.Err(); err != nil {
			pages[i] = domain.FailedPage(cls.PageNumber, cls.Classification, domain.MethodNone,
				domain.WrapError(domain.ErrPageNotProcessed, "extract page", err))
			tracker.pageDone(total)
			continue
		}
		g.Go(func() error {
			pages[i] = o.extractPage(ctx, pdfPath, cls)
			tracker.pageDone(total)
			return nil
		})
	}
	_ = g.Wait()
	return pages
}

func (o *DocumentOrchestrator) extractPage(ctx context.Context, pdfPath string, cls domain.PageClassification) domain.ExtractedPage {
	started := time.Now()
	route := cls.Route()

	pageCtx, cancel := o.pageContext(ctx)
	defer cancel()

	out := make(chan domain.ExtractedPage, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- domain.FailedPage(route.Page(), cls.Classification, methodFor(route), fmt.Errorf("panic: %v", r))
			}
		}()
		out <- o.dispatch(pageCtx, pdfPath, route)
	}()

	var page domain.ExtractedPage
	select {
	case page = <-out:
	case <-pageCtx.Done():
		page = domain.FailedPage(route.Page(), cls.Classification, methodFor(route),
			domain.WrapError(domain.ErrPageTimeout, "extract page", pageCtx.Err()))
	}
	page.PageNumber = route.Page()
	if page.Images == nil {
		page.Images = []domain.ImageElement{}
	}
	if page.Tables == nil {
		page.Tables = []domain.TableElement{}
	}

	elapsed := time.Since(started)
	if o.observer != nil {
		o.observer.ObservePage(page.Type, page.Status, elapsed.Seconds())
	}
	if page.Succeeded() {
		o.logger.Debug("page_extracted", "page", page.PageNumber, "type", page.Type, "duration_ms", elapsed.Milliseconds())
	} else {
		o.logger.Warn("page_failed", "page", page.PageNumber, "type", page.Type, "error", page.Error)
	}
	return page
}

func (o *DocumentOrchestrator) pageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if o.cfg.PageTimeout < 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, o.cfg.PageTimeout)
}

func (o *DocumentOrchestrator) dispatch(ctx context.Context, pdfPath string, route domain.PageRoute) domain.ExtractedPage {
	switch r := route.(type) {
	case domain.NativeRoute:
		return o.native.Extract(ctx, pdfPath, r.PageNumber, o.cfg.DescribeImages)
	case domain.ScannedRoute:
		return o.vision.Extract(ctx, pdfPath, r.PageNumber, o.cfg.VisionHint, o.cfg.Language)
	case domain.ErrorRoute:
		return domain.FailedPage(r.PageNumber, domain.PageError, domain.MethodNone, r.Err)
	default:
		return domain.FailedPage(route.Page(), domain.PageError, domain.MethodNone, fmt.Errorf("unsupported page route %T", route))
	}
}

func methodFor(route domain.PageRoute) string {
	switch route.(type) {
	case domain.NativeRoute:
		return domain.MethodNative
	case domain.ScannedRoute:
		return domain.MethodVision
	default:
		return domain.MethodNone
	}
}

func summarize(classifications []domain.PageClassification, pages []domain.ExtractedPage, elapsed time.Duration) domain.DocumentSummary {
	summary := domain.DocumentSummary{
		TotalPages:     len(pages),
		ProcessingTime: elapsed,
	}
	for _, cls := range classifications {
		switch cls.Classification {
		case domain.PageNative:
			summary.NativePages++
		case domain.PageScanned:
			summary.ScannedPages++
		}
	}
	for _, page := range pages {
		summary.TotalImages += len(page.Images)
		summary.TotalTables += len(page.Tables)
	}
	return summary
}
