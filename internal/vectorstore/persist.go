package vectorstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pdfrag/internal/domain"
)

// FileName is the index file inside a storage location.
const FileName = "index.vec"

// Persist writes the index to location/index.vec. The file is written to a
// temporary name in the same directory and renamed into place, so readers
// see either the previous file or the complete new one.
func (idx *Index) Persist(location string) error {
	if err := idx.persist(location); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	return nil
}

func (idx *Index) persist(location string) error {
	if err := os.MkdirAll(location, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(location, ".index-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := idx.encode(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("encode index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(location, FileName)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Load reads the index stored at location. The embedding provider is kept
// for Query and must be the one the index was built with; that is not
// checked here.
func Load(location string, embedder domain.EmbeddingProvider) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(location, FileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, location)
		}
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrIO, location, err)
	}
	idx, err := decode(data)
	if err != nil {
		return nil, err
	}
	idx.embedder = embedder
	return idx, nil
}
