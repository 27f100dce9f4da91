package domain

import "context"

// Document is a named body of extracted text handed to the indexer.
type Document struct {
	Name    string
	Path    string
	Content string
}

// Chunk is an immutable window of document text used for embedding and retrieval.
type Chunk struct {
	Text   string
	Index  int // sequence number within one build
	Start  int // rune offset in the chunked body
	Source string
}

// Hit is one ranked retrieval match.
type Hit struct {
	Rank   int
	Text   string
	Source string
	Score  float64
}

// RetrievalResult is ordered by non-increasing similarity to the query.
type RetrievalResult []Hit

// Answer is a generated completion together with the passages it was grounded on.
type Answer struct {
	Text    string
	Sources RetrievalResult
}

// EmbeddingProvider converts text into vectors.
// EmbedDocuments returns exactly one vector per input, in input order.
type EmbeddingProvider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// GenerationProvider turns a prompt into a text completion.
type GenerationProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}
