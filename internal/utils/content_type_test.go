package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectContentType(t *testing.T) {
	dir := t.TempDir()

	textFile := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(textFile, []byte("# hi"), 0o644))
	assert.Equal(t, "text/plain; charset=utf-8", DetectContentType(textFile))

	jsonFile := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte("{}"), 0o644))
	assert.Contains(t, DetectContentType(jsonFile), "application/json")

	// Unknown extension falls back to content sniffing.
	binFile := filepath.Join(dir, "blob.xyz123")
	require.NoError(t, os.WriteFile(binFile, []byte{0x00, 0x01, 0x02}, 0o644))
	assert.Equal(t, "application/octet-stream", DetectContentType(binFile))

	// Unreadable file with unknown extension gets the generic fallback.
	assert.Equal(t, "application/octet-stream", DetectContentType(filepath.Join(dir, "missing.xyz123")))
}
