// Package extract turns input files into plain-text documents.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdfrag/internal/domain"
)

// Supported reports whether a file extension can be extracted.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// File reads path and returns its text as a document named after the file.
func File(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	doc := domain.Document{Name: filepath.Base(path), Path: path}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		doc.Content, err = PDF(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return domain.Document{}, fmt.Errorf("%s: %w", path, err)
		}
	case ".txt", ".md":
		doc.Content = string(data)
	default:
		return domain.Document{}, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidConfiguration, filepath.Ext(path))
	}
	return doc, nil
}

// Files extracts every path in order.
func Files(paths []string) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(paths))
	for _, p := range paths {
		doc, err := File(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// PDF returns the plain text of every page, one page per line break. Pages
// without a text layer contribute nothing; a PDF with no text at all yields
// an empty string.
func PDF(r io.ReaderAt, size int64) (text string, err error) {
	// The parser panics on some malformed content streams.
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", domain.ErrIO, p)
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %w", domain.ErrIO, err)
	}
	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %w", domain.ErrIO, i, err)
		}
		if strings.TrimSpace(pageText) != "" {
			pages = append(pages, pageText)
		}
	}
	return strings.Join(pages, "\n"), nil
}
