package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pdfrag/internal/chunker"
	"pdfrag/internal/domain"
	"pdfrag/internal/embedding/hashing"
	"pdfrag/internal/extract/extracttest"
	"pdfrag/internal/registry"
	"pdfrag/internal/summarizer"
	"pdfrag/internal/vectorstore"
)

type fakeGenerator struct {
	prompts []string
}

func (g *fakeGenerator) Complete(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return "generated answer", nil
}

func (g *fakeGenerator) Model() string { return "fake-chat" }

// countingEmbedder wraps another provider and records calls.
type countingEmbedder struct {
	domain.EmbeddingProvider
	calls int
	err   error
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.EmbeddingProvider.EmbedDocuments(ctx, texts)
}

type fixture struct {
	svc  *RAGService
	reg  *registry.FileRegistry
	emb  *countingEmbedder
	gen  *fakeGenerator
	logs *observer.ObservedLogs
}

func newFixture(t *testing.T, size, overlap int) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	f := &fixture{
		reg:  registry.NewFileRegistry(t.TempDir()),
		emb:  &countingEmbedder{EmbeddingProvider: hashing.NewEmbedder(256)},
		gen:  &fakeGenerator{},
		logs: logs,
	}
	f.svc = NewRAGService(chunker.NewFixed(size, overlap), f.emb, f.gen, f.reg, Options{
		Metric:     vectorstore.Cosine,
		TopK:       2,
		Summarizer: summarizer.NewFrequency(2, 0),
		Logger:     zap.New(core),
	})
	return f
}

var corpus = []domain.Document{
	{Name: "cats.pdf", Content: "Cats sleep most of the day. A cat purrs when content. Cats groom their fur."},
	{Name: "rockets.pdf", Content: "Rockets burn fuel to produce thrust. Orbital rockets need staging to reach orbit."},
}

func TestBuildIndex_PersistsAndRecordsMetadata(t *testing.T) {
	f := newFixture(t, 40, 10)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }

	meta, err := f.svc.BuildIndex(context.Background(), "Pets & Space", corpus)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(meta.ID, "pets-space-"))
	assert.Equal(t, "Pets & Space", meta.Name)
	assert.Equal(t, fixed, meta.CreatedAt)
	assert.Equal(t, []string{"cats.pdf", "rockets.pdf"}, meta.Documents)
	assert.Equal(t, 2, meta.DocCount)
	assert.Equal(t, "hashing-256", meta.EmbedModel)
	assert.Equal(t, "cosine", meta.Metric)
	assert.Equal(t, 40, meta.ChunkSize)
	assert.NotEmpty(t, meta.Summary)

	wantChunks := 0
	for _, d := range corpus {
		chunks, err := chunker.Chunk(d.Content, 40, 10)
		require.NoError(t, err)
		wantChunks += len(chunks)
	}
	assert.Equal(t, wantChunks, meta.ChunkCount)
	assert.FileExists(t, filepath.Join(f.reg.Location(meta.ID), vectorstore.FileName))

	stored, err := f.reg.Get(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta.ChunkCount, stored.ChunkCount)

	list, err := f.svc.ListIndexes()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, f.logs.FilterMessage("index built").Len())
}

func TestBuildIndex_ValidatesBeforeEmbedding(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, 100, 100)
	_, err := f.svc.BuildIndex(ctx, "name", corpus)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	f = newFixture(t, 100, 10)
	_, err = f.svc.BuildIndex(ctx, "   ", corpus)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = f.svc.BuildIndex(ctx, "name", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	_, err = f.svc.BuildIndex(ctx, "name", []domain.Document{{Name: "scan.pdf", Content: " \n\t "}})
	assert.ErrorIs(t, err, ErrNoText)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.Equal(t, 0, f.emb.calls)

	list, err := f.svc.ListIndexes()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBuildIndex_ProviderFailureLeavesNoRecord(t *testing.T) {
	f := newFixture(t, 100, 10)
	f.emb.err = &domain.ProviderError{Provider: "openai", Status: 401, Message: "invalid api key"}
	_, err := f.svc.BuildIndex(context.Background(), "docs", corpus)
	var perr *domain.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 401, perr.Status)

	list, err := f.svc.ListIndexes()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBuildIndex_IndexHoldsEveryChunk(t *testing.T) {
	f := newFixture(t, 30, 5)
	meta, err := f.svc.BuildIndex(context.Background(), "docs", corpus)
	require.NoError(t, err)
	opened, err := f.svc.OpenIndex(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta.ChunkCount, opened.Index.Len())

	hits, err := opened.Index.Query(context.Background(), "rockets thrust fuel", opened.Index.Len())
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "rockets.pdf", hits[0].Source)
}

func TestOpenAndAsk(t *testing.T) {
	f := newFixture(t, 60, 10)
	meta, err := f.svc.BuildIndex(context.Background(), "docs", corpus)
	require.NoError(t, err)

	opened, err := f.svc.OpenIndex(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, opened.Meta.ID)

	ans, err := f.svc.Ask(context.Background(), opened, "  Why do rockets need staging?  ")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", ans.Text)
	require.Len(t, ans.Sources, 2)
	assert.Equal(t, "rockets.pdf", ans.Sources[0].Source)
	require.Len(t, f.gen.prompts, 1)
	assert.Contains(t, f.gen.prompts[0], "Question: Why do rockets need staging?\n")

	_, err = f.svc.Ask(context.Background(), opened, " ")
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	_, err = f.svc.Ask(context.Background(), nil, "q")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestAsk_WithoutGenerator(t *testing.T) {
	f := newFixture(t, 60, 10)
	svc := NewRAGService(chunker.NewFixed(60, 10), f.emb, nil, f.reg, Options{})
	_, err := svc.Ask(context.Background(), &OpenedIndex{Index: vectorstore.New(vectorstore.Cosine, 0, nil)}, "q")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestOpenIndex_Errors(t *testing.T) {
	f := newFixture(t, 60, 10)
	_, err := f.svc.OpenIndex("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	meta, err := f.svc.BuildIndex(context.Background(), "docs", corpus)
	require.NoError(t, err)

	other := NewRAGService(chunker.NewFixed(60, 10), hashing.NewEmbedder(64), f.gen, f.reg, Options{})
	_, err = other.OpenIndex(meta.ID)
	assert.ErrorIs(t, err, domain.ErrModelMismatch)

	require.NoError(t, os.Remove(filepath.Join(f.reg.Location(meta.ID), vectorstore.FileName)))
	_, err = f.svc.OpenIndex(meta.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Alpha text about apples."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("Beta notes about bananas."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.png"), []byte{1, 2, 3}, 0o644))

	f := newFixture(t, 100, 10)
	meta, err := f.svc.IngestFiles(context.Background(), "fruit", []string{dir, filepath.Join(dir, "*.txt")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.md"}, meta.Documents)

	_, err = f.svc.IngestFiles(context.Background(), "fruit", []string{filepath.Join(dir, "c.png")})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = f.svc.IngestFiles(context.Background(), "fruit", []string{filepath.Join(dir, "nope.pdf")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.IngestFiles(context.Background(), "fruit", []string{filepath.Join(dir, "*.pdf")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	empty := t.TempDir()
	_, err = f.svc.IngestFiles(context.Background(), "fruit", []string{empty})
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestIngestFiles_PDF(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cats.pdf"),
		extracttest.PDF("Cats sleep most of the day.", "A cat purrs when content."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rockets.pdf"),
		extracttest.PDF("Orbital rockets need staging to reach orbit."), 0o644))

	f := newFixture(t, 100, 10)
	meta, err := f.svc.IngestFiles(context.Background(), "mixed", []string{filepath.Join(dir, "*.pdf")})
	require.NoError(t, err)
	assert.Equal(t, []string{"cats.pdf", "rockets.pdf"}, meta.Documents)
	assert.Equal(t, 2, meta.ChunkCount)

	opened, err := f.svc.OpenIndex(meta.ID)
	require.NoError(t, err)
	hits, err := opened.Index.Query(context.Background(), "rockets staging orbit", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "rockets.pdf", hits[0].Source)
	assert.Equal(t, "Orbital rockets need staging to reach orbit.", hits[0].Text)

	blank := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, os.WriteFile(blank, extracttest.PDF("", " "), 0o644))
	_, err = f.svc.IngestFiles(context.Background(), "scan", []string{blank})
	assert.ErrorIs(t, err, ErrNoText)
}
