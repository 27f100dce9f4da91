package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/registry"
)

func TestRunList_NeedsNoAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	dir := t.TempDir()
	store := filepath.Join(dir, "store")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store_dir: "+store+"\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, runList([]string{"--config", cfgPath}, &out))
	assert.Contains(t, out.String(), "No indexes yet")

	require.NoError(t, registry.NewFileRegistry(store).Save(&registry.Metadata{
		ID:         "notes-1a2b3c4d",
		Name:       "Notes",
		CreatedAt:  time.Now(),
		DocCount:   2,
		ChunkCount: 7,
		EmbedModel: "text-embedding-3-small",
		Summary:    "Meeting notes.",
	}))
	out.Reset()
	require.NoError(t, runList([]string{"--config", cfgPath}, &out))
	assert.Contains(t, out.String(), "notes-1a2b3c4d")
	assert.Contains(t, out.String(), "Notes")
	assert.Contains(t, out.String(), "notes-1a2b3c4d: Meeting notes.")
}
