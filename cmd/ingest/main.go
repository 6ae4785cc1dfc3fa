// Command ingest runs the page pipeline over a local PDF and prints the
// result and its chunks as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/kirillkom/pdf-ingestion/internal/bootstrap"
	"github.com/kirillkom/pdf-ingestion/internal/config"
	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
	"github.com/kirillkom/pdf-ingestion/internal/core/usecase"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/report"
	"github.com/kirillkom/pdf-ingestion/internal/observability/logging"
)

type options struct {
	path       string
	name       string
	reportPath string
	index      bool
	noImages   bool
	workers    int
}

type output struct {
	DocumentID string                 `json:"document_id,omitempty"`
	Result     *domain.DocumentResult `json:"result"`
	Chunks     []domain.Chunk         `json:"chunks"`
}

func main() {
	_ = godotenv.Load()

	var opts options
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "YAML config overlay")
	flag.StringVar(&opts.name, "name", "", "document name used in page labels and chunk metadata (default: file name)")
	flag.StringVar(&opts.reportPath, "report", "", "write an XLSX processing report to this path")
	flag.BoolVar(&opts.index, "index", false, "embed the chunks and index them in Qdrant")
	flag.BoolVar(&opts.noImages, "no-images", false, "skip image descriptions on native pages")
	flag.IntVar(&opts.workers, "workers", 0, "page workers (default from config)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: ingest [flags] file.pdf\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.path = flag.Arg(0)

	cfg, err := config.Load().WithFile(*configFile)
	logger := logging.NewJSONLoggerTo(os.Stderr, "ingest", cfg.LogLevel)
	slog.SetDefault(logger)
	if err != nil {
		logger.Error("config_error", "error", err)
		os.Exit(1)
	}
	if opts.noImages {
		cfg.DescribeImages = false
	}
	if opts.workers > 0 {
		cfg.PageWorkers = opts.workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout, logger); err != nil {
		logger.Error("ingest_failed", "file", opts.path, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, opts options, stdout io.Writer, logger *slog.Logger) error {
	if _, err := os.Stat(opts.path); err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	name := opts.name
	if name == "" {
		name = filepath.Base(opts.path)
	}

	pipeline, err := bootstrap.NewPipeline(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	started := time.Now()
	result := pipeline.Orchestrator.Process(ctx, ports.DocumentSource{Path: opts.path, Name: name}, func(fraction float64, message string) {
		logger.Info("progress", "fraction", fraction, "message", message)
	})

	out := output{Result: result, Chunks: []domain.Chunk{}}
	if result.Status == domain.ResultSuccess {
		chunks, err := pipeline.Chunker.Chunk(result)
		if err != nil {
			return fmt.Errorf("chunk document: %w", err)
		}
		if chunks != nil {
			out.Chunks = chunks
		}
	}

	doc := &domain.Document{
		ID:         uuid.NewString(),
		Filename:   name,
		MimeType:   "application/pdf",
		Status:     documentStatus(result),
		Error:      strings.Join(result.Errors, "; "),
		Summary:    result.Summary,
		ChunkCount: len(out.Chunks),
		CreatedAt:  started.UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	if opts.index && result.Status == domain.ResultSuccess {
		indexer := usecase.NewChunkIndexer(pipeline.Embedder, pipeline.VectorStore, logger).WithBatchSize(cfg.EmbedBatchSize)
		if err := indexer.Index(ctx, doc, out.Chunks); err != nil {
			return err
		}
		out.DocumentID = doc.ID
		logger.Info("document_indexed", "document_id", doc.ID, "chunks", len(out.Chunks))
	}

	if opts.reportPath != "" {
		if err := writeReport(opts.reportPath, doc, result.Pages); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if result.Status != domain.ResultSuccess {
		return fmt.Errorf("processing failed: %s", doc.Error)
	}
	return nil
}

func writeReport(path string, doc *domain.Document, pages []domain.ExtractedPage) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.NewXLSXWriter().WriteReport(f, doc, pages); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func documentStatus(result *domain.DocumentResult) domain.DocumentStatus {
	if result.Status == domain.ResultSuccess {
		return domain.StatusReady
	}
	return domain.StatusFailed
}
