package sync

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FingerprintStore {
	t.Helper()
	store, err := NewFingerprintStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFingerprintStoreCRUD(t *testing.T) {
	store := newTestStore(t)

	record := &FileRecord{
		Path:         "/data/docs/a.txt",
		ContentHash:  "abc123",
		Size:         42,
		ModifiedAt:   time.Now().Add(-time.Hour),
		LastSyncedAt: time.Now(),
		RemoteDocID:  "doc-1",
	}
	require.NoError(t, store.Put(record))

	got, err := store.Get("/data/docs/a.txt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.Path, got.Path)
	assert.Equal(t, record.ContentHash, got.ContentHash)
	assert.Equal(t, record.Size, got.Size)
	assert.Equal(t, "doc-1", got.RemoteDocID)

	// Put is a replace per key.
	record.ContentHash = "def456"
	require.NoError(t, store.Put(record))
	got, err = store.Get("/data/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "def456", got.ContentHash)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.Delete("/data/docs/a.txt"))
	got, err = store.Get("/data/docs/a.txt")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting a missing path is a no-op.
	require.NoError(t, store.Delete("/data/docs/a.txt"))
}

func TestFingerprintStoreGetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get("/nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFingerprintStorePreservesMtimePrecision(t *testing.T) {
	store := newTestStore(t)

	modified := time.Date(2026, 3, 14, 1, 59, 26, 535897932, time.UTC)
	require.NoError(t, store.Put(&FileRecord{
		Path:         "/data/pi.txt",
		ContentHash:  "abc",
		ModifiedAt:   modified,
		LastSyncedAt: time.Now(),
	}))

	got, err := store.Get("/data/pi.txt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.ModifiedAt.Equal(modified), "nanosecond mtime must survive a round trip")
}

func TestFingerprintStoreListUnder(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	for _, path := range []string{
		"/data/docs/a.txt",
		"/data/docs/sub/b.txt",
		"/data/docsx/c.txt", // sibling with the root as a prefix, must not match
		"/other/d.txt",
	} {
		require.NoError(t, store.Put(&FileRecord{
			Path: path, ContentHash: "h", ModifiedAt: now, LastSyncedAt: now,
		}))
	}

	records, err := store.ListUnder("/data/docs")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "/data/docs/a.txt", records[0].Path)
	assert.Equal(t, "/data/docs/sub/b.txt", records[1].Path)
}

func TestFingerprintStorePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	store, err := NewFingerprintStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Put(&FileRecord{
		Path: "/data/a.txt", ContentHash: "abc", ModifiedAt: time.Now(), LastSyncedAt: time.Now(),
	}))
	require.NoError(t, store.Close())

	store, err = NewFingerprintStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get("/data/a.txt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "abc", got.ContentHash)
}
