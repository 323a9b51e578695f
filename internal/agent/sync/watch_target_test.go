package sync

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatchTarget(t *testing.T) {
	root := t.TempDir()

	target, err := NewWatchTarget(root, true, []string{"*.pdf", "docs/**/*.md"}, 0)
	require.NoError(t, err)
	assert.Equal(t, root, target.Root)
	assert.Equal(t, DefaultDebounceInterval, target.Debounce)

	_, err = NewWatchTarget(filepath.Join(root, "missing"), true, nil, 0)
	assert.Error(t, err)

	_, err = NewWatchTarget(root, true, []string{"[invalid"}, 0)
	assert.Error(t, err)
}

func TestWatchTargetRelPath(t *testing.T) {
	root := t.TempDir()
	target, err := NewWatchTarget(root, true, nil, time.Second)
	require.NoError(t, err)

	rel, err := target.RelPath(filepath.Join(root, "sub", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "sub/a.txt", rel)

	_, err = target.RelPath("/somewhere/else.txt")
	assert.Error(t, err)
}

func TestWatchTargetIncludes(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name     string
		include  []string
		relPath  string
		expected bool
	}{
		{"empty includes everything", nil, "any/file.bin", true},
		{"basename glob matches anywhere", []string{"*.pdf"}, "deep/nested/report.pdf", true},
		{"basename glob rejects others", []string{"*.pdf"}, "deep/nested/report.txt", false},
		{"path glob matches relative path", []string{"docs/**/*.md"}, "docs/guides/intro.md", true},
		{"path glob rejects outside prefix", []string{"docs/**/*.md"}, "src/README.md", false},
		{"any of several patterns is enough", []string{"*.pdf", "*.md"}, "notes.md", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := NewWatchTarget(root, true, tt.include, time.Second)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, target.Includes(tt.relPath))
		})
	}
}
