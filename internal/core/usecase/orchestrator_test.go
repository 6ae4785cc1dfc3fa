package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
)

type stamperFake struct {
	dst   string
	label string
	err   error
}

func (f *stamperFake) Stamp(_ context.Context, _, dstPath, label string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.dst = dstPath
	f.label = label
	return 0, nil
}

type analyzerFake struct {
	classifications []domain.PageClassification
	err             error
	calls           int
	path            string
}

func (f *analyzerFake) AnalyzeDocument(_ context.Context, pdfPath string) ([]domain.PageClassification, error) {
	f.calls++
	f.path = pdfPath
	if f.err != nil {
		return nil, f.err
	}
	return f.classifications, nil
}

type nativeFake struct {
	delay   func(page int) time.Duration
	fail    map[int]error
	panicOn int
	block   chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
}

func (f *nativeFake) Extract(_ context.Context, _ string, pageNumber int, _ bool) domain.ExtractedPage {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}
	if f.delay != nil {
		time.Sleep(f.delay(pageNumber))
	}
	if pageNumber == f.panicOn {
		panic("corrupt content stream")
	}
	if err := f.fail[pageNumber]; err != nil {
		return domain.FailedPage(pageNumber, domain.PageNative, domain.MethodNative, err)
	}
	return domain.ExtractedPage{
		PageNumber:       pageNumber,
		Type:             domain.PageNative,
		Status:           domain.PageStatusSuccess,
		Content:          "native text",
		ProcessingMethod: domain.MethodNative,
		Tables:           []domain.TableElement{{Description: "Tableau avec 2 lignes et 2 colonnes."}},
	}
}

type visionFake struct {
	language string
}

func (f *visionFake) Extract(_ context.Context, _ string, pageNumber int, _, language string) domain.ExtractedPage {
	f.language = language
	return domain.ExtractedPage{
		PageNumber:       pageNumber,
		Type:             domain.PageScanned,
		Status:           domain.PageStatusSuccess,
		Content:          "scanned text [SIGNATURE: paraphe]",
		ProcessingMethod: domain.MethodVision,
		Images:           []domain.ImageElement{{Description: "paraphe", ImageType: domain.ImageSignature}},
	}
}

type progressRecorder struct {
	mu       sync.Mutex
	values   []float64
	messages []string
}

func (r *progressRecorder) record(fraction float64, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, fraction)
	r.messages = append(r.messages, message)
}

func classifications(types ...domain.PageType) []domain.PageClassification {
	out := make([]domain.PageClassification, 0, len(types))
	for i, typ := range types {
		cls := domain.PageClassification{PageNumber: i + 1, Classification: typ, Confidence: 0.9}
		if typ == domain.PageError {
			cls.Confidence = 0
			cls.Reason = "probe failed"
		}
		out = append(out, cls)
	}
	return out
}

func newTestOrchestrator(analyzer ports.PageAnalyzer, native ports.NativeExtractor, cfg OrchestratorConfig) *DocumentOrchestrator {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return NewDocumentOrchestrator(&stamperFake{}, analyzer, native, &visionFake{}, cfg, nil)
}

func TestOrchestratorMixedDocument(t *testing.T) {
	analyzer := &analyzerFake{classifications: classifications(domain.PageNative, domain.PageScanned, domain.PageError)}
	stamper := &stamperFake{}
	vision := &visionFake{}
	workDir := t.TempDir()
	o := NewDocumentOrchestrator(stamper, analyzer, &nativeFake{}, vision, OrchestratorConfig{WorkDir: workDir}, nil)

	result := o.Process(context.Background(), ports.DocumentSource{Path: "/in/report.pdf", Name: "report.pdf"}, nil)

	if result.Status != domain.ResultSuccess {
		t.Fatalf("expected success, got %s (%v)", result.Status, result.Errors)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("page failures must not populate document errors: %v", result.Errors)
	}
	if result.Summary.TotalPages != 3 || result.Summary.NativePages != 1 || result.Summary.ScannedPages != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if result.Summary.TotalTables != 1 || result.Summary.TotalImages != 1 {
		t.Fatalf("unexpected element totals: %+v", result.Summary)
	}
	if result.Pages[2].Status != domain.PageStatusError || result.Pages[2].Type != domain.PageError {
		t.Fatalf("expected page 3 error page, got %+v", result.Pages[2])
	}
	if result.Pages[2].Error != "probe failed" {
		t.Fatalf("expected classification reason as page error, got %q", result.Pages[2].Error)
	}
	runDir := filepath.Dir(stamper.dst)
	if filepath.Dir(runDir) != workDir || !strings.HasPrefix(filepath.Base(runDir), "numbered-") ||
		filepath.Base(stamper.dst) != "report_numbered.pdf" || stamper.label != "report.pdf" {
		t.Fatalf("unexpected stamp target %q label %q", stamper.dst, stamper.label)
	}
	if analyzer.path != stamper.dst {
		t.Fatalf("expected classification on stamped copy, got %q", analyzer.path)
	}
	if vision.language != "French" {
		t.Fatalf("expected default language French, got %q", vision.language)
	}
}

func TestOrchestratorStampsEachRunSeparately(t *testing.T) {
	workDir := t.TempDir()
	src := ports.DocumentSource{Path: "/a/devis.pdf", Name: "devis.pdf"}

	var targets []string
	for i := 0; i < 2; i++ {
		stamper := &stamperFake{}
		o := NewDocumentOrchestrator(stamper, &analyzerFake{classifications: classifications(domain.PageNative)},
			&nativeFake{}, &visionFake{}, OrchestratorConfig{WorkDir: workDir}, nil)
		if result := o.Process(context.Background(), src, nil); result.Status != domain.ResultSuccess {
			t.Fatalf("Process() status = %s (%v)", result.Status, result.Errors)
		}
		targets = append(targets, stamper.dst)
		if _, err := os.Stat(filepath.Dir(stamper.dst)); !os.IsNotExist(err) {
			t.Fatalf("expected run dir to be removed, stat error = %v", err)
		}
	}
	if targets[0] == targets[1] {
		t.Fatalf("runs over the same file name share %q", targets[0])
	}
}

func TestOrchestratorStampingFailure(t *testing.T) {
	analyzer := &analyzerFake{classifications: classifications(domain.PageNative)}
	o := NewDocumentOrchestrator(&stamperFake{err: errors.New("encrypted pdf")}, analyzer, &nativeFake{}, &visionFake{}, OrchestratorConfig{}, nil)

	result := o.Process(context.Background(), ports.DocumentSource{Path: "/in/locked.pdf"}, nil)

	if result.Status != domain.ResultError {
		t.Fatalf("expected error status, got %s", result.Status)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "encrypted pdf") {
		t.Fatalf("expected stamping error, got %v", result.Errors)
	}
	if len(result.Pages) != 0 {
		t.Fatalf("expected no pages, got %d", len(result.Pages))
	}
	if analyzer.calls != 0 {
		t.Fatalf("classification must not run after stamping failure")
	}
	if result.DocumentName != "locked.pdf" {
		t.Fatalf("expected name from path, got %q", result.DocumentName)
	}
}

func TestOrchestratorClassificationFailure(t *testing.T) {
	analyzer := &analyzerFake{err: errors.New("not a pdf")}
	o := newTestOrchestrator(analyzer, &nativeFake{}, OrchestratorConfig{})

	result := o.Process(context.Background(), ports.DocumentSource{Path: "/in/bad.pdf"}, nil)
	if result.Status != domain.ResultError || len(result.Errors) != 1 {
		t.Fatalf("expected classification stage failure, got %+v", result)
	}
	if !strings.Contains(result.Errors[0], "classification") {
		t.Fatalf("expected stage name in error, got %q", result.Errors[0])
	}
}

func TestOrchestratorPreservesPageOrder(t *testing.T) {
	const pages = 12
	types := make([]domain.PageType, pages)
	for i := range types {
		types[i] = domain.PageNative
	}
	native := &nativeFake{delay: func(page int) time.Duration {
		return time.Duration(pages-page) * time.Millisecond
	}}
	o := newTestOrchestrator(&analyzerFake{classifications: classifications(types...)}, native, OrchestratorConfig{Workers: 4})

	result := o.Process(context.Background(), ports.DocumentSource{Path: "/in/long.pdf"}, nil)

	for i, page := range result.Pages {
		if page.PageNumber != i+1 {
			t.Fatalf("page at index %d has number %d", i, page.PageNumber)
		}
	}
	if got := native.maxActive.Load(); got > 4 {
		t.Fatalf("expected at most 4 concurrent pages, got %d", got)
	}
}

func TestOrchestratorIsolatesPanics(t *testing.T) {
	native := &nativeFake{panicOn: 2, fail: map[int]error{3: errors.New("bad table grid")}}
	o := newTestOrchestrator(&analyzerFake{classifications: classifications(domain.PageNative, domain.PageNative, domain.PageNative)}, native, OrchestratorConfig{})

	result := o.Process(context.Background(), ports.DocumentSource{Path: "/in/doc.pdf"}, nil)

	if !result.Pages[0].Succeeded() {
		t.Fatalf("expected page 1 success, got %+v", result.Pages[0])
	}
	if result.Pages[1].Succeeded() || !strings.Contains(result.Pages[1].Error, "corrupt content stream") {
		t.Fatalf("expected recovered panic on page 2, got %+v", result.Pages[1])
	}
	if result.Pages[2].Error != "bad table grid" || result.Pages[2].Content != "" {
		t.Fatalf("expected page 3 error without content, got %+v", result.Pages[2])
	}
	if result.Status != domain.ResultSuccess || len(result.Errors) != 0 {
		t.Fatalf("expected success with page-local errors, got %+v", result)
	}
}

func TestOrchestratorPageTimeout(t *testing.T) {
	native := &nativeFake{block: make(chan struct{})}
	t.Cleanup(func() { close(native.block) })
	o := newTestOrchestrator(&analyzerFake{classifications: classifications(domain.PageNative)}, native, OrchestratorConfig{PageTimeout: 20 * time.Millisecond})

	result := o.Process(context.Background(), ports.DocumentSource{Path: "/in/slow.pdf"}, nil)

	page := result.Pages[0]
	if page.Succeeded() || !strings.Contains(page.Error, domain.ErrPageTimeout.Error()) {
		t.Fatalf("expected timeout error page, got %+v", page)
	}
	if page.ProcessingMethod != domain.MethodNative {
		t.Fatalf("expected native method on timed out page, got %q", page.ProcessingMethod)
	}
}

func TestOrchestratorCanceledContextSkipsPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := newTestOrchestrator(&analyzerFake{classifications: classifications(domain.PageNative, domain.PageScanned)}, &nativeFake{}, OrchestratorConfig{})

	result := o.Process(ctx, ports.DocumentSource{Path: "/in/doc.pdf"}, nil)

	if len(result.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(result.Pages))
	}
	for _, page := range result.Pages {
		if page.Succeeded() || !strings.Contains(page.Error, domain.ErrPageNotProcessed.Error()) {
			t.Fatalf("expected not-processed page, got %+v", page)
		}
	}
}

func TestOrchestratorProgressIsMonotonic(t *testing.T) {
	types := []domain.PageType{domain.PageNative, domain.PageScanned, domain.PageNative, domain.PageNative}
	native := &nativeFake{delay: func(page int) time.Duration { return time.Duration(page) * time.Millisecond }}
	o := newTestOrchestrator(&analyzerFake{classifications: classifications(types...)}, native, OrchestratorConfig{Workers: 2})
	rec := &progressRecorder{}

	o.Process(context.Background(), ports.DocumentSource{Path: "/in/doc.pdf"}, rec.record)

	if len(rec.values) != 4+5 {
		t.Fatalf("expected 9 progress reports, got %d: %v", len(rec.values), rec.values)
	}
	for i := 1; i < len(rec.values); i++ {
		if rec.values[i] < rec.values[i-1] {
			t.Fatalf("progress regressed at %d: %v", i, rec.values)
		}
	}
	for _, v := range rec.values[:len(rec.values)-1] {
		if v >= 1.0 {
			t.Fatalf("progress reached 1.0 before completion: %v", rec.values)
		}
	}
	if last := rec.values[len(rec.values)-1]; last != 1.0 {
		t.Fatalf("expected final progress 1.0, got %v", last)
	}
}
