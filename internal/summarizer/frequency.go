// Package summarizer produces short extractive summaries of indexed documents
// for the index listing.
package summarizer

import (
	"math"
	"regexp"
	"slices"
	"strings"
)

var (
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// Frequency ranks sentences by the normalised frequency of their content
// words and keeps the best ones in document order.
type Frequency struct {
	MaxSentences int
	// MaxChars caps the summary length in characters; 0 means no cap.
	MaxChars  int
	stopwords map[string]struct{}
}

// NewFrequency returns a summarizer keeping at most maxSentences sentences.
func NewFrequency(maxSentences, maxChars int) *Frequency {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Frequency{MaxSentences: maxSentences, MaxChars: maxChars, stopwords: stopwords()}
}

// Summarize returns the top sentences of text joined by spaces. Text without
// sentence punctuation is returned trimmed and capped.
func (s *Frequency) Summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		return s.truncate(text)
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = tokenPattern.FindAllString(strings.ToLower(sent), -1)
		for _, tok := range tokens[i] {
			if _, stop := s.stopwords[tok]; !stop {
				freq[tok]++
			}
		}
	}
	top := 0.0
	for _, v := range freq {
		top = max(top, v)
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i := range sentences {
		sum := 0.0
		for _, tok := range tokens[i] {
			sum += freq[tok]
		}
		if top > 0 {
			sum /= top
		}
		// damp long sentences
		if n := len(tokens[i]); n > 0 {
			sum /= math.Sqrt(float64(n))
		}
		scores[i] = scored{idx: i, score: sum}
	}
	slices.SortStableFunc(scores, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	keep := make([]int, 0, s.MaxSentences)
	for _, sc := range scores[:min(s.MaxSentences, len(scores))] {
		keep = append(keep, sc.idx)
	}
	slices.Sort(keep)
	out := make([]string, len(keep))
	for i, idx := range keep {
		out[i] = strings.TrimSpace(sentences[idx])
	}
	return s.truncate(strings.Join(out, " "))
}

func (s *Frequency) truncate(text string) string {
	text = strings.TrimSpace(text)
	if s.MaxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= s.MaxChars {
		return text
	}
	return strings.TrimSpace(string(runes[:s.MaxChars])) + "…"
}

func stopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these",
		"those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too",
		"very", "can", "will", "just", "don", "should", "now", "we", "you", "they", "he", "she", "i", "our",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
