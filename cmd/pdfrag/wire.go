package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"pdfrag/internal/chunker"
	"pdfrag/internal/config"
	"pdfrag/internal/domain"
	"pdfrag/internal/embedding/hashing"
	"pdfrag/internal/openai"
	"pdfrag/internal/registry"
	"pdfrag/internal/service"
	"pdfrag/internal/summarizer"
	"pdfrag/internal/vectorstore"
)

// wiring collects the per-invocation overrides applied on top of the config.
type wiring struct {
	cfg          *config.AppConfig
	apiKey       string
	needGenerate bool
	log          *zap.Logger
}

func (w wiring) key(c config.OpenAIConfig) string {
	if w.apiKey != "" {
		return w.apiKey
	}
	return c.APIKey()
}

func (w wiring) embedder() (domain.EmbeddingProvider, error) {
	cfg := w.cfg.Embedder
	switch cfg.Type {
	case "hashing":
		return hashing.NewEmbedder(cfg.Hashing.Dimension), nil
	case "openai":
		o := cfg.OpenAI
		return openai.NewEmbedder(openai.EmbedderConfig{
			Config: openai.Config{
				APIKey:  w.key(o.OpenAIConfig),
				BaseURL: o.BaseURL,
				Model:   o.Model,
				Timeout: time.Duration(o.TimeoutSecs) * time.Second,
			},
			BatchSize:         o.BatchSize,
			Concurrency:       o.Concurrency,
			RequestsPerSecond: o.RequestsPerSecond,
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidConfiguration, cfg.Type)
	}
}

func (w wiring) generator() (domain.GenerationProvider, error) {
	cfg := w.cfg.Generator
	if cfg.Type != "openai" {
		return nil, fmt.Errorf("%w: unknown generator %q", domain.ErrInvalidConfiguration, cfg.Type)
	}
	o := cfg.OpenAI
	return openai.NewGenerator(openai.GeneratorConfig{
		Config: openai.Config{
			APIKey:  w.key(o.OpenAIConfig),
			BaseURL: o.BaseURL,
			Model:   o.Model,
			Timeout: time.Duration(o.TimeoutSecs) * time.Second,
		},
		Temperature: o.Temperature,
	})
}

func (w wiring) service() (*service.RAGService, error) {
	metric, err := vectorstore.ParseMetric(w.cfg.Retrieval.Metric)
	if err != nil {
		return nil, err
	}
	emb, err := w.embedder()
	if err != nil {
		return nil, err
	}
	var gen domain.GenerationProvider
	if w.needGenerate {
		if gen, err = w.generator(); err != nil {
			return nil, err
		}
	}
	return service.NewRAGService(
		chunker.NewFixed(w.cfg.Chunker.Size, w.cfg.Chunker.Overlap),
		emb,
		gen,
		registry.NewFileRegistry(w.cfg.StoreDir),
		service.Options{
			Metric:     metric,
			TopK:       w.cfg.Retrieval.TopK,
			Summarizer: summarizer.NewFrequency(w.cfg.Summarizer.MaxSentences, w.cfg.Summarizer.MaxChars),
			Logger:     w.log,
		},
	), nil
}
