package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned for bad chunking, metric or retrieval parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrEmptyInput is returned when there is nothing to index or ask.
	ErrEmptyInput = errors.New("empty input")
	// ErrIO is returned when a file or index cannot be read or written.
	ErrIO = errors.New("i/o failure")
	// ErrNotFound is returned when a storage location holds no index or an
	// input file is missing.
	ErrNotFound = errors.New("not found")
	// ErrCorruptIndex is returned when stored index data cannot be parsed.
	ErrCorruptIndex = errors.New("corrupt index")
	// ErrModelMismatch is returned when an index is reused with a different embedding model.
	ErrModelMismatch = errors.New("embedding model mismatch")
)

// ProviderError describes a failed call to an embedding or generation service.
type ProviderError struct {
	Provider string
	Status   int // HTTP status, 0 when the request never got a response
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := e.Provider
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil && (e.Message == "" || e.Message != e.Err.Error()) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err carries a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
