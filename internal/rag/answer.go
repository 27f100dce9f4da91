// Package rag answers questions by retrieving indexed passages and
// conditioning a generation call on them.
package rag

import (
	"context"
	"fmt"
	"strings"

	"pdfrag/internal/domain"
)

// Retriever is the search side of a vector index.
type Retriever interface {
	Search(query []float32, k int) (domain.RetrievalResult, error)
}

const promptHeader = "Use only the following pieces of context to answer the question at the end. " +
	"If the context does not contain the answer, just say that you don't know, don't try to make up an answer."

// Answer embeds the question, retrieves the k closest passages and asks the
// generator to answer from them. An empty retrieval still produces a
// completion, generated without context.
func Answer(ctx context.Context, question string, index Retriever, embed domain.EmbeddingProvider, gen domain.GenerationProvider, k int) (*domain.Answer, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidConfiguration, k)
	}
	vec, err := embed.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	hits, err := index.Search(vec, k)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = domain.RetrievalResult{}
	}
	completion, err := gen.Complete(ctx, BuildPrompt(question, hits))
	if err != nil {
		return nil, err
	}
	return &domain.Answer{Text: completion, Sources: hits}, nil
}

// BuildPrompt lays out the retrieved passages in rank order, each labelled
// with its source, followed by the question.
func BuildPrompt(question string, hits domain.RetrievalResult) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\n")
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if h.Source != "" {
			fmt.Fprintf(&b, "[%s]\n", h.Source)
		}
		b.WriteString(h.Text)
	}
	if len(hits) > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nHelpful Answer:")
	return b.String()
}
