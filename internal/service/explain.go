package service

import (
	"errors"

	"pdfrag/internal/domain"
)

// Explain turns an error from the build or ask flows into a message that
// tells the user what to do next.
func Explain(err error) string {
	if err == nil {
		return ""
	}
	var perr *domain.ProviderError
	switch {
	case errors.Is(err, ErrNoText):
		return "no extractable text in the given documents (scanned PDFs need OCR first)"
	case errors.Is(err, domain.ErrModelMismatch):
		return err.Error() + "; rebuild the index or switch the embedder back"
	case errors.Is(err, domain.ErrCorruptIndex):
		return err.Error() + "; rebuild the index"
	case errors.As(err, &perr):
		switch perr.Status {
		case 401, 403:
			return "the provider rejected the API key; check OPENAI_API_KEY or --api-key (" + perr.Error() + ")"
		case 429:
			return "the provider is rate limiting requests; wait and retry (" + perr.Error() + ")"
		}
		return "provider request failed: " + perr.Error()
	}
	return err.Error()
}
