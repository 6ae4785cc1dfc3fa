package bootstrap

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/pdf-ingestion/internal/config"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
	"github.com/kirillkom/pdf-ingestion/internal/core/usecase"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/chunking"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/extractor/native"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/extractor/pdfdoc"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/extractor/vision"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/llm/openai"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/ocr/tesseract"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/render"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/resilience"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/stamp"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/vector/qdrant"
)

const (
	providerOllama    = "ollama"
	providerOpenAI    = "openai"
	providerTesseract = "tesseract"
)

// Pipeline holds the document processing graph shared by the worker and the CLI.
type Pipeline struct {
	Orchestrator *usecase.DocumentOrchestrator
	Chunker      ports.Chunker
	Embedder     ports.Embedder
	VectorStore  ports.VectorStore

	closers []func() error
}

func NewPipeline(cfg config.Config, logger *slog.Logger, observer ports.PageObserver) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{}

	visionModel, err := p.newVisionModel(cfg, logger)
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		p.Close()
		return nil, err
	}

	tokenizer, err := chunking.NewTiktokenTokenizer(cfg.TokenizerEncoding)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}

	renderer := render.NewFitzRenderer()
	captionModel := visionModel
	if !cfg.DescribeImages {
		captionModel = nil
	}

	nativeSettings := native.DefaultSettings()
	if cfg.LineTolerance > 0 {
		nativeSettings.LineTolerance = cfg.LineTolerance
	}
	if cfg.TableTolerance > 0 {
		nativeSettings.Tables = native.TableSettings{
			SnapTolerance:         cfg.TableTolerance,
			JoinTolerance:         cfg.TableTolerance,
			EdgeMinLength:         cfg.TableTolerance,
			IntersectionTolerance: cfg.TableTolerance,
		}
	}
	if cfg.CropDPI > 0 {
		nativeSettings.CropDPI = cfg.CropDPI
	}

	orchestrator := usecase.NewDocumentOrchestrator(
		stamp.NewStamper(stamp.DefaultDescription),
		pdfdoc.NewClassifier(cfg.TextThreshold, logger),
		native.NewExtractor(native.NewCaptioner(captionModel, logger), renderer, nativeSettings, logger),
		vision.NewExtractor(renderer, visionModel, vision.Settings{
			DPI:       cfg.RenderDPI,
			MaxWidth:  cfg.VisionMaxSide,
			MaxHeight: cfg.VisionMaxSide,
			MaxTokens: cfg.VisionMaxTokens,
		}, logger),
		usecase.OrchestratorConfig{
			WorkDir:        workDir(cfg),
			Workers:        cfg.PageWorkers,
			PageTimeout:    cfg.PageTimeout(),
			DescribeImages: cfg.DescribeImages,
			Language:       cfg.Language,
			VisionHint:     cfg.VisionHint,
		},
		logger,
	)
	if observer != nil {
		orchestrator.WithObserver(observer)
	}

	p.Orchestrator = orchestrator
	p.Chunker = chunking.NewSplitter(tokenizer, cfg.ChunkSize, cfg.ChunkOverlap)
	p.Embedder = embedder
	p.VectorStore = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	return p, nil
}

func (p *Pipeline) Close() {
	for _, c := range p.closers {
		_ = c()
	}
	p.closers = nil
}

func (p *Pipeline) newVisionModel(cfg config.Config, logger *slog.Logger) (ports.VisionModel, error) {
	executor := resilience.NewExecutor(modelExecutorConfig(cfg, cfg.VisionMaxAttempts, logger))

	switch provider := strings.ToLower(cfg.EffectiveVisionProvider()); provider {
	case providerOllama:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaVisionModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
		return ollama.NewVisionModel(client), nil
	case providerOpenAI:
		client := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIVisionModel, cfg.OpenAIEmbedModel, openai.WithExecutor(executor))
		return openai.NewVisionModel(client), nil
	case providerTesseract:
		model, err := tesseract.New(cfg.OCRLanguage)
		if err != nil {
			return nil, fmt.Errorf("init tesseract: %w", err)
		}
		p.closers = append(p.closers, model.Close)
		return model, nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", provider)
	}
}

func newEmbedder(cfg config.Config, logger *slog.Logger) (ports.Embedder, error) {
	executor := resilience.NewExecutor(modelExecutorConfig(cfg, cfg.EmbedMaxAttempts, logger))

	switch provider := strings.ToLower(cfg.LLMProvider); provider {
	case providerOllama:
		return ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaVisionModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))), nil
	case providerOpenAI:
		return openai.NewEmbedder(openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIVisionModel, cfg.OpenAIEmbedModel, openai.WithExecutor(executor))), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}

func modelExecutorConfig(cfg config.Config, attempts int, logger *slog.Logger) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.Logger = logger
	if attempts > 0 {
		rc.RetryMaxAttempts = attempts
	}
	rc.RateLimit = cfg.LLMRateLimit
	rc.RateBurst = cfg.LLMRateBurst
	return rc
}
