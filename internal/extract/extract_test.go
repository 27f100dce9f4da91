package extract

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
	"pdfrag/internal/extract/extracttest"
)

func TestFile_PlainText(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	md := filepath.Join(dir, "README.MD")
	require.NoError(t, os.WriteFile(txt, []byte("hello\nworld"), 0o644))
	require.NoError(t, os.WriteFile(md, []byte("# Title"), 0o644))

	docs, err := Files([]string{txt, md})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, domain.Document{Name: "notes.txt", Path: txt, Content: "hello\nworld"}, docs[0])
	assert.Equal(t, "README.MD", docs[1].Name)
	assert.Equal(t, "# Title", docs[1].Content)
}

func TestFile_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := File(filepath.Join(dir, "missing.pdf"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	odd := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(odd, []byte{0x89}, 0o644))
	_, err = File(odd)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	fake := filepath.Join(dir, "fake.pdf")
	require.NoError(t, os.WriteFile(fake, []byte("this is not a pdf"), 0o644))
	_, err = File(fake)
	assert.ErrorIs(t, err, domain.ErrIO)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.PDF"))
	assert.True(t, Supported("dir/b.md"))
	assert.True(t, Supported("c.txt"))
	assert.False(t, Supported("d.docx"))
	assert.False(t, Supported("noext"))
}

func TestPDF_PagesInOrder(t *testing.T) {
	data := extracttest.PDF("Hello from page one.", "", "Second page (with parens).")
	text, err := PDF(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, "Hello from page one.\nSecond page (with parens).", text)
}

func TestFile_PDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Report.PDF")
	require.NoError(t, os.WriteFile(path, extracttest.PDF("Quarterly revenue grew."), 0o644))

	doc, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, "Report.PDF", doc.Name)
	assert.Equal(t, "Quarterly revenue grew.", doc.Content)
}

func TestPDF_MalformedContentIsIOError(t *testing.T) {
	data := extracttest.PDF("fine")
	// same length, so offsets stay valid, but Tj now sees four operands
	broken := bytes.Replace(data, []byte(" Td "), []byte(" 12 "), 1)
	require.NotEqual(t, data, broken)
	_, err := PDF(bytes.NewReader(broken), int64(len(broken)))
	assert.ErrorIs(t, err, domain.ErrIO)

	bad := bytes.Replace(data, []byte("xref\n0 "), []byte("xrex\n0 "), 1)
	_, err = PDF(bytes.NewReader(bad), int64(len(bad)))
	assert.ErrorIs(t, err, domain.ErrIO)
}
