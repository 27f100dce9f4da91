package rag

import (
	"strings"

	"pdfrag/internal/domain"
)

// PreviewLength is the number of characters of chunk text in a source preview.
const PreviewLength = 200

// FormatSource renders "<source> - <preview>" where the preview is the first
// PreviewLength characters of the text with newlines turned into spaces.
// Leading and trailing spaces and hyphens are trimmed, so an untagged hit
// renders as the bare preview.
func FormatSource(h domain.Hit) string {
	runes := []rune(h.Text)
	if len(runes) > PreviewLength {
		runes = runes[:PreviewLength]
	}
	snippet := strings.ReplaceAll(string(runes), "\n", " ")
	return strings.Trim(h.Source+" - "+snippet, " -")
}

// FormatSources renders every hit of a retrieval result in rank order.
func FormatSources(result domain.RetrievalResult) []string {
	out := make([]string, 0, len(result))
	for _, h := range result {
		out = append(out, FormatSource(h))
	}
	return out
}
