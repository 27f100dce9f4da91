// Package vectorstore holds the flat vector index: it embeds chunks, answers
// nearest-neighbour queries by exhaustive scan and persists itself to a
// storage location as a single binary file.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"slices"

	"pdfrag/internal/domain"
)

// Metric selects how vectors are compared.
type Metric uint8

const (
	// Cosine ranks by descending cosine similarity.
	Cosine Metric = 1
	// L2 ranks by ascending squared euclidean distance.
	L2 Metric = 2
)

func (m Metric) String() string {
	switch m {
	case Cosine:
		return "cosine"
	case L2:
		return "l2"
	default:
		return fmt.Sprintf("metric(%d)", uint8(m))
	}
}

// ParseMetric maps a config value to a Metric. Empty means Cosine.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "cosine", "":
		return Cosine, nil
	case "l2", "euclidean":
		return L2, nil
	default:
		return 0, fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidConfiguration, s)
	}
}

func (m Metric) valid() bool { return m == Cosine || m == L2 }

type entry struct {
	text   string
	source string
	vector []float32
	norm   float64
}

// Index is an exhaustive-scan vector index. After Build or Load it is
// read-only and safe for concurrent searches.
type Index struct {
	metric    Metric
	dimension int
	model     string
	entries   []entry
	embedder  domain.EmbeddingProvider
}

// New returns an empty index. Searching it yields no hits.
func New(metric Metric, dimension int, embedder domain.EmbeddingProvider) *Index {
	idx := &Index{metric: metric, dimension: dimension, embedder: embedder}
	if embedder != nil {
		idx.model = embedder.Model()
	}
	return idx
}

// Build embeds every chunk text and stores it alongside the chunk's text and
// source, in chunk order.
func Build(ctx context.Context, chunks []domain.Chunk, embedder domain.EmbeddingProvider, metric Metric) (*Index, error) {
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyInput
	}
	if !metric.valid() {
		return nil, fmt.Errorf("%w: unsupported metric %s", domain.ErrInvalidConfiguration, metric)
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, &domain.ProviderError{
			Provider: embedder.Model(),
			Message:  fmt.Sprintf("got %d vectors for %d chunks", len(vectors), len(chunks)),
		}
	}
	dimension := len(vectors[0])
	if dimension == 0 {
		return nil, &domain.ProviderError{Provider: embedder.Model(), Message: "empty embedding vector"}
	}
	idx := New(metric, dimension, embedder)
	idx.entries = make([]entry, len(chunks))
	for i, ch := range chunks {
		if len(vectors[i]) != dimension {
			return nil, &domain.ProviderError{
				Provider: embedder.Model(),
				Message:  fmt.Sprintf("vector %d has dimension %d, expected %d", i, len(vectors[i]), dimension),
			}
		}
		idx.entries[i] = newEntry(ch.Text, ch.Source, vectors[i])
	}
	return idx, nil
}

func newEntry(text, source string, vector []float32) entry {
	return entry{text: text, source: source, vector: vector, norm: math.Sqrt(dot(vector, vector))}
}

// Len returns the number of stored entries.
func (idx *Index) Len() int { return len(idx.entries) }

// Dimension returns the vector dimensionality.
func (idx *Index) Dimension() int { return idx.dimension }

// Metric returns the comparison metric.
func (idx *Index) Metric() Metric { return idx.metric }

// Model returns the name of the embedding model the vectors came from.
func (idx *Index) Model() string { return idx.model }

// Search returns up to k entries closest to query. Equal scores keep
// insertion order.
func (idx *Index) Search(query []float32, k int) (domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidConfiguration, k)
	}
	if len(idx.entries) == 0 {
		return domain.RetrievalResult{}, nil
	}
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", domain.ErrInvalidConfiguration, len(query), idx.dimension)
	}
	type scored struct {
		pos   int
		score float64
	}
	qnorm := math.Sqrt(dot(query, query))
	scores := make([]scored, len(idx.entries))
	for i := range idx.entries {
		scores[i] = scored{pos: i, score: idx.score(query, qnorm, &idx.entries[i])}
	}
	slices.SortStableFunc(scores, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})
	k = min(k, len(scores))
	result := make(domain.RetrievalResult, k)
	for rank := 0; rank < k; rank++ {
		e := idx.entries[scores[rank].pos]
		result[rank] = domain.Hit{Rank: rank, Text: e.text, Source: e.source, Score: scores[rank].score}
	}
	return result, nil
}

// Query embeds text with the index's embedding provider and searches.
func (idx *Index) Query(ctx context.Context, text string, k int) (domain.RetrievalResult, error) {
	if idx.embedder == nil {
		return nil, fmt.Errorf("%w: index has no embedding provider", domain.ErrInvalidConfiguration)
	}
	vec, err := idx.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return idx.Search(vec, k)
}

// score is higher for closer vectors: cosine similarity, or the negated
// squared euclidean distance.
func (idx *Index) score(query []float32, qnorm float64, e *entry) float64 {
	if idx.metric == L2 {
		return -squaredL2(query, e.vector)
	}
	if qnorm == 0 || e.norm == 0 {
		return 0
	}
	return dot(query, e.vector) / (qnorm * e.norm)
}

func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func squaredL2(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
