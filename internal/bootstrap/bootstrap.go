package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kirillkom/pdf-ingestion/internal/config"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
	"github.com/kirillkom/pdf-ingestion/internal/core/usecase"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/report"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/resilience"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/pdf-ingestion/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.MessageQueue
	Repo     *postgres.DocumentRepository
	Report   ports.ReportWriter
	Pipeline *Pipeline

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	SearchUC  ports.ChunkSearcher

	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics("worker")
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(queueExecutorConfig(logger)),
		LagObserver:        workerMetrics,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	pipeline, err := NewPipeline(cfg, logger, workerMetrics)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(
		repo, storage, pipeline.Orchestrator, pipeline.Chunker, pipeline.Embedder, pipeline.VectorStore, logger,
	).WithEmbedBatchSize(cfg.EmbedBatchSize).WithObserver(workerMetrics)
	searchUC := usecase.NewSearchUseCase(pipeline.Embedder, pipeline.VectorStore)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		Repo:     repo,
		Report:   report.NewXLSXWriter(),
		Pipeline: pipeline,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		SearchUC:  searchUC,

		WorkerMetrics: workerMetrics,

		closeFn: func() {
			pipeline.Close()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func workDir(cfg config.Config) string {
	if cfg.WorkDir != "" {
		return cfg.WorkDir
	}
	return filepath.Join(cfg.StoragePath, "work")
}

func queueExecutorConfig(logger *slog.Logger) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.Logger = logger
	return rc
}
