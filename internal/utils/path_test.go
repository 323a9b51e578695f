package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	_, err := ResolvePath("")
	assert.Error(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	resolved, err := ResolvePath("~/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), resolved)

	resolved, err = ResolvePath("/var/../tmp/./x")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", resolved)
}

func TestDirAndFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(file))
	assert.True(t, FileExists(file))
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
}

func TestEnsureParent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a", "b", "c.txt")

	require.NoError(t, EnsureParent(file))
	assert.True(t, DirExists(filepath.Join(dir, "a", "b")))
}
