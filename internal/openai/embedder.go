package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pdfrag/internal/domain"
)

// DefaultEmbeddingModel is the small OpenAI embedding model.
const DefaultEmbeddingModel = string(goopenai.SmallEmbedding3)

// EmbedderConfig configures batching and throughput of the embedding adapter.
type EmbedderConfig struct {
	Config
	BatchSize         int
	Concurrency       int
	RequestsPerSecond float64 // 0 disables client-side limiting
}

// Embedder implements domain.EmbeddingProvider on the OpenAI embeddings API.
type Embedder struct {
	client      *goopenai.Client
	model       string
	batchSize   int
	concurrency int
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
}

// NewEmbedder creates an embedding adapter from cfg.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	client, err := newClient(cfg.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	e := &Embedder{
		client:      client,
		model:       cfg.Model,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		breaker:     newBreaker("openai-embeddings"),
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return e, nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// EmbedDocuments embeds texts in batches, running up to Concurrency batches
// at once. out[i] always corresponds to texts[i].
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.embedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EmbedQuery embeds a single query text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, &domain.ProviderError{Provider: providerName, Message: "rate limiter", Err: err}
		}
	}
	resp, err := execute(e.breaker, func() (goopenai.EmbeddingResponse, error) {
		resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: texts,
			Model: goopenai.EmbeddingModel(e.model),
		})
		if err != nil {
			return resp, wrapError("embeddings request failed", err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, &domain.ProviderError{
			Provider: providerName,
			Message:  fmt.Sprintf("embeddings response returned %d vectors for %d inputs", len(resp.Data), len(texts)),
		}
	}
	// the API reports each vector's input position; do not trust response order
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || vecs[d.Index] != nil {
			return nil, &domain.ProviderError{
				Provider: providerName,
				Message:  fmt.Sprintf("embeddings response has invalid index %d", d.Index),
			}
		}
		if len(d.Embedding) == 0 {
			return nil, &domain.ProviderError{Provider: providerName, Message: "empty embedding"}
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}
