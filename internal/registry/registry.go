// Package registry records the indexes that have been built and where each
// one is stored.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"pdfrag/internal/domain"
)

// MetaFileName is the metadata file written next to each index.
const MetaFileName = "meta.yaml"

// Metadata describes one built index.
type Metadata struct {
	ID         string    `yaml:"id"`
	Name       string    `yaml:"name"`
	CreatedAt  time.Time `yaml:"created_at"`
	Documents  []string  `yaml:"documents"`
	DocCount   int       `yaml:"doc_count"`
	ChunkCount int       `yaml:"chunk_count"`
	EmbedModel string    `yaml:"embed_model"`
	Metric     string    `yaml:"metric"`
	ChunkSize  int       `yaml:"chunk_size"`
	Overlap    int       `yaml:"chunk_overlap"`
	Summary    string    `yaml:"summary,omitempty"`
}

// Registry lists, reads and stores index metadata.
type Registry interface {
	List() ([]Metadata, error)
	Get(id string) (*Metadata, error)
	Save(meta *Metadata) error
	// Location is the directory the index with this id is persisted to.
	Location(id string) string
}

// FileRegistry keeps one directory per index under Root.
type FileRegistry struct {
	Root string
}

// NewFileRegistry returns a registry rooted at dir. The directory is created
// on first save.
func NewFileRegistry(dir string) *FileRegistry {
	return &FileRegistry{Root: dir}
}

func (r *FileRegistry) Location(id string) string {
	return filepath.Join(r.Root, id)
}

// List returns all readable records, newest first. Directories without a
// parseable metadata file are skipped.
func (r *FileRegistry) List() ([]Metadata, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read store %s: %w", domain.ErrIO, r.Root, err)
	}
	var out []Metadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := r.Get(e.Name())
		if err != nil {
			continue
		}
		out = append(out, *meta)
	}
	slices.SortStableFunc(out, func(a, b Metadata) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (r *FileRegistry) Get(id string) (*Metadata, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("%w: index %q", domain.ErrNotFound, id)
	}
	data, err := os.ReadFile(filepath.Join(r.Location(id), MetaFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: index %q", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata for %q: %w", domain.ErrCorruptIndex, id, err)
	}
	if meta.ID == "" {
		meta.ID = id
	}
	return &meta, nil
}

// Save writes the record atomically to the index directory.
func (r *FileRegistry) Save(meta *Metadata) error {
	if meta == nil || meta.ID == "" {
		return fmt.Errorf("%w: metadata without id", domain.ErrInvalidConfiguration)
	}
	dir := r.Location(meta.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	data, err := yaml.Marshal(meta)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".meta-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, MetaFileName)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	return nil
}

// maxSlugBytes keeps id directories under the common 255-byte file name limit.
const maxSlugBytes = 200

// NewIndexID derives a directory-safe id from a display name plus a random
// suffix, e.g. "quarterly-report-1a2b3c4d". Every rune that is not a letter
// or number becomes a hyphen.
func NewIndexID(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugBytes {
		cut := maxSlugBytes
		for cut > 0 && !utf8.RuneStart(slug[cut]) {
			cut--
		}
		slug = strings.TrimRight(slug[:cut], "-")
	}
	if slug == "" {
		slug = "rag"
	}
	return slug + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
