package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"pdfrag/internal/domain"
)

func TestExplain(t *testing.T) {
	cases := []struct {
		err      error
		contains string
	}{
		{ErrNoText, "no extractable text"},
		{fmt.Errorf("%w: built with a", domain.ErrModelMismatch), "rebuild the index"},
		{fmt.Errorf("open: %w", domain.ErrCorruptIndex), "rebuild the index"},
		{&domain.ProviderError{Provider: "openai", Status: 401}, "API key"},
		{fmt.Errorf("embed: %w", &domain.ProviderError{Provider: "openai", Status: 429}), "rate limiting"},
		{&domain.ProviderError{Provider: "openai", Message: "connection refused"}, "provider request failed"},
		{errors.New("plain"), "plain"},
	}
	for _, tc := range cases {
		assert.Contains(t, Explain(tc.err), tc.contains)
	}
	assert.Empty(t, Explain(nil))
}
