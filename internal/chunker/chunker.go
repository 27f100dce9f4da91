package chunker

import (
	"fmt"
	"strings"

	"pdfrag/internal/domain"
)

// Fixed splits text into fixed-size rune windows that overlap by Overlap runes.
type Fixed struct {
	Size    int
	Overlap int
}

func NewFixed(size, overlap int) *Fixed {
	return &Fixed{Size: size, Overlap: overlap}
}

// Validate checks the window parameters without touching any text.
func (c *Fixed) Validate() error {
	return validate(c.Size, c.Overlap)
}

// Chunk splits one document and tags every chunk with the document name.
func (c *Fixed) Chunk(document domain.Document) ([]domain.Chunk, error) {
	chunks, err := Chunk(document.Content, c.Size, c.Overlap)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Source = document.Name
	}
	return chunks, nil
}

// Chunk advances a window of size runes across text with a stride of
// size-overlap. The last window may be shorter. Empty or whitespace-only text
// yields no chunks.
func Chunk(text string, size, overlap int) ([]domain.Chunk, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	runes := []rune(text)
	stride := size - overlap
	var chunks []domain.Chunk
	for start := 0; start < len(runes); start += stride {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			Text:  string(runes[start:end]),
			Index: len(chunks),
			Start: start,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", domain.ErrInvalidConfiguration, size, overlap)
	}
	return nil
}
