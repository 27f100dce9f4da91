// Package service wires chunking, embedding, the vector index, the registry
// and generation into the build and ask flows used by the CLI and the TUI.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"pdfrag/internal/chunker"
	"pdfrag/internal/domain"
	"pdfrag/internal/extract"
	"pdfrag/internal/rag"
	"pdfrag/internal/registry"
	"pdfrag/internal/summarizer"
	"pdfrag/internal/vectorstore"
)

// ErrNoText is returned when the inputs contain no extractable text.
var ErrNoText = fmt.Errorf("%w: no extractable text", domain.ErrEmptyInput)

// Options holds the tunables of a RAGService.
type Options struct {
	Metric     vectorstore.Metric
	TopK       int
	Summarizer *summarizer.Frequency
	Logger     *zap.Logger
}

// RAGService builds indexes from documents and answers questions against them.
// Generation is optional; a service without a generator can build and list.
type RAGService struct {
	chunker    *chunker.Fixed
	embedder   domain.EmbeddingProvider
	generator  domain.GenerationProvider
	registry   registry.Registry
	summarizer *summarizer.Frequency
	metric     vectorstore.Metric
	topK       int
	log        *zap.Logger
	now        func() time.Time
}

func NewRAGService(ch *chunker.Fixed, embedder domain.EmbeddingProvider, generator domain.GenerationProvider, reg registry.Registry, opts Options) *RAGService {
	s := &RAGService{
		chunker:    ch,
		embedder:   embedder,
		generator:  generator,
		registry:   reg,
		summarizer: opts.Summarizer,
		metric:     opts.Metric,
		topK:       opts.TopK,
		log:        opts.Logger,
		now:        time.Now,
	}
	if s.metric == 0 {
		s.metric = vectorstore.Cosine
	}
	if s.topK == 0 {
		s.topK = 4
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// TopK returns the configured number of passages retrieved per question.
func (s *RAGService) TopK() int { return s.topK }

// IngestFiles extracts the given files, globs and directories (one level
// deep) and builds an index from them.
func (s *RAGService) IngestFiles(ctx context.Context, name string, paths []string) (*registry.Metadata, error) {
	if err := s.validateBuild(name); err != nil {
		return nil, err
	}
	files, err := expandInputs(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .pdf, .txt or .md files given", domain.ErrEmptyInput)
	}
	docs, err := extract.Files(files)
	if err != nil {
		return nil, err
	}
	s.log.Debug("extracted documents", zap.Int("files", len(docs)))
	return s.BuildIndex(ctx, name, docs)
}

// BuildIndex chunks every document, embeds the chunks, persists the index
// under a fresh id and records its metadata.
func (s *RAGService) BuildIndex(ctx context.Context, name string, docs []domain.Document) (*registry.Metadata, error) {
	if err := s.validateBuild(name); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents", domain.ErrEmptyInput)
	}
	start := s.now()

	var chunks []domain.Chunk
	names := make([]string, 0, len(docs))
	var body strings.Builder
	for _, d := range docs {
		docChunks, err := s.chunker.Chunk(d)
		if err != nil {
			return nil, err
		}
		if len(docChunks) == 0 {
			s.log.Warn("document has no extractable text", zap.String("document", d.Name))
		}
		for _, ch := range docChunks {
			ch.Index = len(chunks)
			chunks = append(chunks, ch)
		}
		names = append(names, d.Name)
		body.WriteString(d.Content)
		body.WriteString("\n")
	}
	if len(chunks) == 0 {
		return nil, ErrNoText
	}

	idx, err := vectorstore.Build(ctx, chunks, s.embedder, s.metric)
	if err != nil {
		s.log.Error("embedding failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		return nil, err
	}

	id := registry.NewIndexID(name)
	location := s.registry.Location(id)
	if err := idx.Persist(location); err != nil {
		s.removeLocation(location)
		return nil, err
	}
	meta := &registry.Metadata{
		ID:         id,
		Name:       strings.TrimSpace(name),
		CreatedAt:  start.UTC(),
		Documents:  names,
		DocCount:   len(docs),
		ChunkCount: len(chunks),
		EmbedModel: s.embedder.Model(),
		Metric:     s.metric.String(),
		ChunkSize:  s.chunker.Size,
		Overlap:    s.chunker.Overlap,
	}
	if s.summarizer != nil {
		meta.Summary = s.summarizer.Summarize(body.String())
	}
	if err := s.registry.Save(meta); err != nil {
		s.removeLocation(location)
		return nil, err
	}
	s.log.Info("index built",
		zap.String("id", id),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.String("model", meta.EmbedModel),
		zap.Duration("elapsed", s.now().Sub(start)),
	)
	return meta, nil
}

// removeLocation drops a half-built index directory so it never shows up in
// the registry.
func (s *RAGService) removeLocation(location string) {
	if err := os.RemoveAll(location); err != nil {
		s.log.Warn("cleanup of failed build", zap.String("location", location), zap.Error(err))
	}
}

func (s *RAGService) validateBuild(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: index name is required", domain.ErrInvalidConfiguration)
	}
	return s.chunker.Validate()
}

// ListIndexes returns the recorded indexes, newest first.
func (s *RAGService) ListIndexes() ([]registry.Metadata, error) {
	return s.registry.List()
}

// OpenedIndex is a loaded index together with its metadata.
type OpenedIndex struct {
	Meta  registry.Metadata
	Index *vectorstore.Index
}

// OpenIndex loads the index with the given id. It fails with
// ErrModelMismatch when the index was embedded with a different model than
// the configured provider, since its vectors would not be comparable.
func (s *RAGService) OpenIndex(id string) (*OpenedIndex, error) {
	meta, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	idx, err := vectorstore.Load(s.registry.Location(id), s.embedder)
	if err != nil {
		return nil, err
	}
	want := s.embedder.Model()
	for _, got := range []string{meta.EmbedModel, idx.Model()} {
		if got != "" && got != want {
			return nil, fmt.Errorf("%w: index %q was built with %q, configured embedder is %q",
				domain.ErrModelMismatch, id, got, want)
		}
	}
	s.log.Debug("index opened", zap.String("id", id), zap.Int("entries", idx.Len()))
	return &OpenedIndex{Meta: *meta, Index: idx}, nil
}

// Ask answers question from the opened index.
func (s *RAGService) Ask(ctx context.Context, opened *OpenedIndex, question string) (*domain.Answer, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("%w: no generation provider configured", domain.ErrInvalidConfiguration)
	}
	if opened == nil || opened.Index == nil {
		return nil, fmt.Errorf("%w: no index selected", domain.ErrInvalidConfiguration)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrEmptyInput)
	}
	start := s.now()
	ans, err := rag.Answer(ctx, question, opened.Index, s.embedder, s.generator, s.topK)
	if err != nil {
		s.log.Error("answer failed", zap.String("index", opened.Meta.ID), zap.Error(err))
		return nil, err
	}
	if len(ans.Sources) == 0 {
		s.log.Warn("no passages retrieved, answering without context", zap.String("index", opened.Meta.ID))
	}
	s.log.Info("question answered",
		zap.String("index", opened.Meta.ID),
		zap.Int("sources", len(ans.Sources)),
		zap.Duration("elapsed", s.now().Sub(start)),
	)
	return ans, nil
}

// expandInputs resolves globs and directories into a de-duplicated list of
// supported files, in argument order. Unsupported files named explicitly are
// rejected; those found through a glob or directory are skipped.
func expandInputs(paths []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q", domain.ErrInvalidConfiguration, p)
		}
		if matches == nil {
			matches = []string{p}
		}
		explicit := len(matches) == 1 && matches[0] == p
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, m)
				}
				return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
			}
			if info.IsDir() {
				entries, err := os.ReadDir(m)
				if err != nil {
					return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
				}
				for _, e := range entries {
					if !e.IsDir() && extract.Supported(e.Name()) {
						add(filepath.Join(m, e.Name()))
					}
				}
				continue
			}
			if !extract.Supported(m) {
				if explicit {
					return nil, fmt.Errorf("%w: unsupported file %s", domain.ErrInvalidConfiguration, m)
				}
				continue
			}
			add(m)
		}
	}
	return out, nil
}
