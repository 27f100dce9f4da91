package tui

import (
	"pdfrag/internal/registry"
	"pdfrag/internal/service"
)

// Turn is one question and its outcome.
type Turn struct {
	Question string
	Answer   string
	Sources  []string
	Err      error
}

// Session is the state of one chat: the selected index and the turns asked
// against it. Selecting another index starts a fresh history.
type Session struct {
	index   *service.OpenedIndex
	history []Turn
}

// Select makes opened the active index and clears the history.
func (s *Session) Select(opened *service.OpenedIndex) {
	s.index = opened
	s.history = nil
}

// Index returns the active index or nil.
func (s *Session) Index() *service.OpenedIndex { return s.index }

// Meta returns the metadata of the active index.
func (s *Session) Meta() (registry.Metadata, bool) {
	if s.index == nil {
		return registry.Metadata{}, false
	}
	return s.index.Meta, true
}

// Record appends a turn to the history.
func (s *Session) Record(t Turn) { s.history = append(s.history, t) }

// History returns the turns in the order they were asked.
func (s *Session) History() []Turn { return s.history }
