package bootstrap

import (
	"strings"
	"testing"

	"github.com/kirillkom/pdf-ingestion/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		LLMProvider:       "ollama",
		OllamaURL:         "http://127.0.0.1:1",
		OllamaVisionModel: "vision",
		OllamaEmbedModel:  "embed",
		QdrantURL:         "http://127.0.0.1:1",
		QdrantCollection:  "chunks",
		ChunkSize:         500,
		ChunkOverlap:      100,
		VisionMaxAttempts: 1,
		EmbedMaxAttempts:  3,
		WorkDir:           "/tmp/pdfi-test",
	}
}

func TestNewPipelineWiresDefaults(t *testing.T) {
	p, err := NewPipeline(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	defer p.Close()

	if p.Orchestrator == nil || p.Chunker == nil || p.Embedder == nil || p.VectorStore == nil {
		t.Fatalf("expected every pipeline stage to be wired: %+v", p)
	}
}

func TestNewPipelineRejectsUnknownProviders(t *testing.T) {
	cfg := testConfig()
	cfg.VisionProvider = "paddle"
	if _, err := NewPipeline(cfg, nil, nil); err == nil || !strings.Contains(err.Error(), "vision provider") {
		t.Fatalf("expected vision provider error, got %v", err)
	}

	cfg = testConfig()
	cfg.LLMProvider = "tesseract"
	cfg.VisionProvider = "ollama"
	if _, err := NewPipeline(cfg, nil, nil); err == nil || !strings.Contains(err.Error(), "embedding provider") {
		t.Fatalf("expected embedding provider error, got %v", err)
	}
}

func TestModelExecutorConfig(t *testing.T) {
	cfg := testConfig()
	cfg.LLMRateLimit = 2
	cfg.LLMRateBurst = 4

	rc := modelExecutorConfig(cfg, 1, nil)
	if rc.RetryMaxAttempts != 1 || rc.RateLimit != 2 || rc.RateBurst != 4 {
		t.Fatalf("unexpected executor config %+v", rc)
	}
	if rc = modelExecutorConfig(cfg, 0, nil); rc.RetryMaxAttempts != 3 {
		t.Fatalf("expected default attempts, got %d", rc.RetryMaxAttempts)
	}
}

func TestWorkDirFallsBackToStorage(t *testing.T) {
	if got := workDir(config.Config{StoragePath: "/data"}); got != "/data/work" {
		t.Fatalf("workDir() = %q", got)
	}
}
