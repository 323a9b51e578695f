package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	gitignore "github.com/sabhiram/go-gitignore"
)

const hashCacheSize = 4096

// Decision is the evaluator's verdict for one settle or scan entry.
type Decision uint8

const (
	DecisionIgnore Decision = iota
	DecisionUnchanged
	DecisionChanged
)

// Evaluation couples a decision with the pending change to enqueue when the
// decision is DecisionChanged.
type Evaluation struct {
	Decision Decision
	Change   *PendingChange
	// Reason is a short human-readable note for logging.
	Reason string
}

var (
	evalIgnored   = &Evaluation{Decision: DecisionIgnore}
	evalUnchanged = &Evaluation{Decision: DecisionUnchanged}
)

// hashCacheEntry remembers the last computed hash for a path so repeated
// reconciliation scans don't rehash files whose stat signature is stable.
type hashCacheEntry struct {
	size    int64
	modTime time.Time
	hash    string
}

// Evaluator turns a settled path into a verdict: new, modified, deleted or
// unchanged, using the fingerprint store as the source of truth for "did this
// really change". It never mutates the store.
type Evaluator struct {
	target      *WatchTarget
	store       *FingerprintStore
	excludes    *gitignore.GitIgnore
	maxFileSize int64
	hashCache   *lru.Cache[string, hashCacheEntry]
}

// defaultExcludes filters editor droppings and OS junk that would otherwise
// churn the pipeline.
var defaultExcludes = []string{
	".DS_Store",
	"Thumbs.db",
	"*.swp",
	"*.swo",
	"*.tmp",
	"*~",
	".#*",
	"#*#",
	"*.part",
	"*.crdownload",
}

// NewEvaluator builds an evaluator. Extra excludes use gitignore syntax and
// are matched against the root-relative path; maxFileSize of 0 disables the
// size ceiling.
func NewEvaluator(target *WatchTarget, store *FingerprintStore, excludes []string, maxFileSize int64) (*Evaluator, error) {
	cache, err := lru.New[string, hashCacheEntry](hashCacheSize)
	if err != nil {
		return nil, err
	}

	lines := append(append([]string{}, defaultExcludes...), excludes...)
	return &Evaluator{
		target:      target,
		store:       store,
		excludes:    gitignore.CompileIgnoreLines(lines...),
		maxFileSize: maxFileSize,
		hashCache:   cache,
	}, nil
}

// Evaluate applies the change-detection state machine to one path:
//
//	directory or non-included path      -> ignore
//	vanished, record exists             -> deleted
//	vanished, no record                 -> ignore
//	no record                           -> created
//	record exists, hash identical       -> unchanged
//	record exists, hash differs         -> modified
//
// mtime and size are cheap pre-filters only: when both match the stored
// record the hash is skipped, but a mismatch always triggers a full SHA-256
// recomputation. The pre-filter can never produce a false "changed" result.
func (e *Evaluator) Evaluate(path string) (*Evaluation, error) {
	relPath, err := e.target.RelPath(path)
	if err != nil {
		return evalIgnored, nil
	}

	if e.excludes.MatchesPath(relPath) {
		return evalIgnored, nil
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return e.evaluateVanished(path)
		}
		// Permission or IO failure: treat like unreadable content.
		return e.evaluateUnreadable(path, statErr)
	}

	if info.IsDir() {
		return evalIgnored, nil
	}

	if !e.target.Includes(relPath) {
		return evalIgnored, nil
	}

	record, err := e.store.Get(path)
	if err != nil {
		return nil, err
	}

	// Pre-filter: identical size and mtime mean we may skip hashing. This
	// can miss a real change when mtime granularity hides it; the hash path
	// below never misses.
	if record != nil && record.Size == info.Size() && record.ModifiedAt.Equal(info.ModTime()) {
		slog.Debug("skipped, mtime and size match record", "path", path)
		return evalUnchanged, nil
	}

	hash, err := e.hashWithCache(path, info)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			slog.Warn("skipped, file exceeds size ceiling", "path", path, "size", info.Size())
			return evalIgnored, nil
		}
		if errors.Is(err, ErrUnreadable) {
			return e.evaluateUnreadable(path, err)
		}
		return nil, err
	}

	if record == nil {
		return &Evaluation{
			Decision: DecisionChanged,
			Reason:   "no record",
			Change: &PendingChange{
				Path:          path,
				Kind:          ChangeCreated,
				CandidateHash: hash,
				Size:          info.Size(),
				ModifiedAt:    info.ModTime(),
				FirstSeen:     time.Now(),
			},
		}, nil
	}

	if hash == record.ContentHash {
		slog.Debug("skipped, hash identical", "path", path)
		return evalUnchanged, nil
	}

	return &Evaluation{
		Decision: DecisionChanged,
		Reason:   "hash differs",
		Change: &PendingChange{
			Path:          path,
			Kind:          ChangeModified,
			CandidateHash: hash,
			Size:          info.Size(),
			ModifiedAt:    info.ModTime(),
			FirstSeen:     time.Now(),
			RemoteDocID:   record.RemoteDocID,
		},
	}, nil
}

// evaluateVanished handles a path that no longer exists on disk.
func (e *Evaluator) evaluateVanished(path string) (*Evaluation, error) {
	record, err := e.store.Get(path)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return evalIgnored, nil
	}

	e.hashCache.Remove(path)
	return &Evaluation{
		Decision: DecisionChanged,
		Reason:   "vanished",
		Change: &PendingChange{
			Path:          path,
			Kind:          ChangeDeleted,
			CandidateHash: record.ContentHash,
			FirstSeen:     time.Now(),
			RemoteDocID:   record.RemoteDocID,
		},
	}, nil
}

// evaluateUnreadable treats an unreadable file as a deletion when a record
// exists, otherwise skips it with a warning.
func (e *Evaluator) evaluateUnreadable(path string, cause error) (*Evaluation, error) {
	record, err := e.store.Get(path)
	if err != nil {
		return nil, err
	}
	if record == nil {
		slog.Warn("skipped, unreadable and never synced", "path", path, "error", cause)
		return evalIgnored, nil
	}

	slog.Warn("unreadable, treating as deleted", "path", path, "error", cause)
	return &Evaluation{
		Decision: DecisionChanged,
		Reason:   "unreadable",
		Change: &PendingChange{
			Path:          path,
			Kind:          ChangeDeleted,
			CandidateHash: record.ContentHash,
			FirstSeen:     time.Now(),
			RemoteDocID:   record.RemoteDocID,
		},
	}, nil
}

// hashWithCache computes the SHA-256 of path, reusing a cached digest when
// the stat signature has not moved since the last computation.
func (e *Evaluator) hashWithCache(path string, info os.FileInfo) (string, error) {
	if e.maxFileSize > 0 && info.Size() > e.maxFileSize {
		return "", fmt.Errorf("%w: %s is %d bytes (ceiling %d)", ErrTooLarge, path, info.Size(), e.maxFileSize)
	}

	if entry, ok := e.hashCache.Get(path); ok {
		if entry.size == info.Size() && entry.modTime.Equal(info.ModTime()) {
			return entry.hash, nil
		}
	}

	hash, err := HashFile(path)
	if err != nil {
		return "", err
	}

	e.hashCache.Add(path, hashCacheEntry{
		size:    info.Size(),
		modTime: info.ModTime(),
		hash:    hash,
	})
	return hash, nil
}
