package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
)

func TestChunk_Scenario(t *testing.T) {
	chunks, err := Chunk("AAAAABBBBBCCCCC", 10, 5)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "AAAAABBBBB", chunks[0].Text)
	assert.Equal(t, "BBBBBCCCCC", chunks[1].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 5, chunks[1].Start)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestChunk_CountAndStride(t *testing.T) {
	text := strings.Repeat("abcdefghij", 37) + "xyz" // 373 runes
	L := len([]rune(text))
	cases := []struct{ size, overlap int }{
		{10, 0}, {10, 5}, {10, 9}, {100, 20}, {1000, 200}, {7, 3}, {1, 0},
	}
	for _, tc := range cases {
		chunks, err := Chunk(text, tc.size, tc.overlap)
		require.NoError(t, err)
		stride := tc.size - tc.overlap
		want := (L - tc.overlap + stride - 1) / stride
		if want < 1 {
			want = 1
		}
		require.Lenf(t, chunks, want, "size=%d overlap=%d", tc.size, tc.overlap)
		for i := 1; i < len(chunks); i++ {
			assert.Equal(t, stride, chunks[i].Start-chunks[i-1].Start)
		}
		for i, ch := range chunks {
			n := len([]rune(ch.Text))
			if i < len(chunks)-1 {
				assert.Equal(t, tc.size, n)
			} else {
				assert.LessOrEqual(t, n, tc.size)
				assert.Positive(t, n)
			}
		}
		last := chunks[len(chunks)-1]
		assert.Equal(t, L, last.Start+len([]rune(last.Text)))
	}
}

func TestChunk_OverlapContent(t *testing.T) {
	chunks, err := Chunk("0123456789abcdefghij", 8, 3)
	require.NoError(t, err)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		assert.Equal(t, string(prev[len(prev)-3:]), string(cur[:3]))
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. " + strings.Repeat("lorem ipsum ", 40)
	a, err := Chunk(text, 50, 10)
	require.NoError(t, err)
	b, err := Chunk(text, 50, 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestChunk_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t \r\n"} {
		chunks, err := Chunk(text, 10, 2)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestChunk_ShortText(t *testing.T) {
	chunks, err := Chunk("héllo", 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "héllo", chunks[0].Text)
}

func TestChunk_Multibyte(t *testing.T) {
	chunks, err := Chunk("日本語のテキスト", 4, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "日本語の", chunks[0].Text)
	assert.Equal(t, "語のテキ", chunks[1].Text)
	assert.Equal(t, "テキスト", chunks[2].Text)
}

func TestChunk_InvalidConfiguration(t *testing.T) {
	cases := []struct{ size, overlap int }{
		{0, 0}, {-5, 0}, {10, 10}, {10, 11}, {10, -1},
	}
	for _, tc := range cases {
		_, err := Chunk("some text", tc.size, tc.overlap)
		require.ErrorIsf(t, err, domain.ErrInvalidConfiguration, "size=%d overlap=%d", tc.size, tc.overlap)
	}
}

func TestFixed_ChunkTagsSource(t *testing.T) {
	c := NewFixed(4, 1)
	require.NoError(t, c.Validate())
	chunks, err := c.Chunk(domain.Document{Name: "report.pdf", Content: "abcdefghij"})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, "report.pdf", ch.Source)
	}
	assert.ErrorIs(t, NewFixed(5, 5).Validate(), domain.ErrInvalidConfiguration)
}
