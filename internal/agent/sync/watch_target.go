package sync

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ingestd/ingestd/internal/utils"
)

const DefaultDebounceInterval = 2 * time.Second

// WatchTarget is the immutable configuration for one watched subtree.
// Changing it requires stopping and restarting the watch.
type WatchTarget struct {
	// Root is the absolute, canonicalized path of the watched subtree.
	Root string

	// Recursive controls whether subdirectories are watched and scanned.
	Recursive bool

	// Include holds glob patterns matched against the root-relative path.
	// Patterns without a path separator match the base name only.
	// Empty means all files are included.
	Include []string

	// Debounce is the quiet window applied to raw filesystem notifications.
	Debounce time.Duration
}

// NewWatchTarget canonicalizes root and validates patterns.
func NewWatchTarget(root string, recursive bool, include []string, debounce time.Duration) (*WatchTarget, error) {
	resolved, err := utils.ResolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	if !utils.DirExists(resolved) {
		return nil, fmt.Errorf("watch root is not a directory: %s", resolved)
	}

	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern: %q", pattern)
		}
	}

	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}

	return &WatchTarget{
		Root:      resolved,
		Recursive: recursive,
		Include:   include,
		Debounce:  debounce,
	}, nil
}

// RelPath returns the root-relative path for an absolute path, or an error if
// the path lies outside the watched subtree.
func (t *WatchTarget) RelPath(path string) (string, error) {
	rel, err := filepath.Rel(t.Root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s outside watch root %s", path, t.Root)
	}
	return filepath.ToSlash(rel), nil
}

// Includes reports whether a root-relative path matches the include patterns.
func (t *WatchTarget) Includes(relPath string) bool {
	if len(t.Include) == 0 {
		return true
	}
	base := filepath.Base(relPath)
	for _, pattern := range t.Include {
		subject := base
		if strings.Contains(pattern, "/") {
			subject = relPath
		}
		if ok, _ := doublestar.Match(pattern, subject); ok {
			return true
		}
	}
	return false
}
