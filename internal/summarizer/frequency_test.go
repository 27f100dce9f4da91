package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrequency_KeepsSalientSentencesInOrder(t *testing.T) {
	text := "Vector indexes store embeddings. The weather was nice. " +
		"Embeddings make vector indexes searchable. Lunch was served at noon."
	got := NewFrequency(2, 0).Summarize(text)
	assert.Equal(t, "Vector indexes store embeddings. Embeddings make vector indexes searchable.", got)
}

func TestFrequency_NoPunctuation(t *testing.T) {
	assert.Equal(t, "just a fragment", NewFrequency(3, 0).Summarize("  just   a\nfragment  "))
	assert.Equal(t, "", NewFrequency(3, 0).Summarize(" \n "))
}

func TestFrequency_FewerSentencesThanLimit(t *testing.T) {
	assert.Equal(t, "One. Two!", NewFrequency(5, 0).Summarize("One. Two!"))
}

func TestFrequency_Truncates(t *testing.T) {
	got := NewFrequency(1, 10).Summarize(strings.Repeat("word ", 10) + ".")
	assert.Equal(t, "word word…", got)
}

func TestNewFrequency_DefaultsSentenceCount(t *testing.T) {
	assert.Equal(t, 3, NewFrequency(0, 0).MaxSentences)
}
