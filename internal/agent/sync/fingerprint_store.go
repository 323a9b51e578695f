package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ingestd/ingestd/internal/db"
	"github.com/jmoiron/sqlx"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS file_records (
    path TEXT PRIMARY KEY,
    content_hash TEXT NOT NULL,
    size INTEGER NOT NULL,
    modified_at TEXT NOT NULL,
    last_synced_at TEXT NOT NULL,
    remote_doc_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_records_hash ON file_records(content_hash);
`

// storeRow is the raw sqlite row. Timestamps are stored as RFC3339Nano so the
// mtime pre-filter survives a round trip without losing precision.
type storeRow struct {
	Path         string `db:"path"`
	ContentHash  string `db:"content_hash"`
	Size         int64  `db:"size"`
	ModifiedAt   string `db:"modified_at"`
	LastSyncedAt string `db:"last_synced_at"`
	RemoteDocID  string `db:"remote_doc_id"`
}

func (r *storeRow) toRecord() (*FileRecord, error) {
	modifiedAt, err := time.Parse(time.RFC3339Nano, r.ModifiedAt)
	if err != nil {
		return nil, fmt.Errorf("parse modified_at for %s: %w", r.Path, err)
	}
	lastSyncedAt, err := time.Parse(time.RFC3339Nano, r.LastSyncedAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_synced_at for %s: %w", r.Path, err)
	}
	return &FileRecord{
		Path:         r.Path,
		ContentHash:  r.ContentHash,
		Size:         r.Size,
		ModifiedAt:   modifiedAt,
		LastSyncedAt: lastSyncedAt,
		RemoteDocID:  r.RemoteDocID,
	}, nil
}

// FingerprintStore is the durable mapping from path to last-synced content
// hash and metadata. Each key is independent; put is atomic per key.
type FingerprintStore struct {
	db *sqlx.DB
}

// NewFingerprintStore creates or opens a store backed by an SQLite database.
// Use ":memory:" for tests.
func NewFingerprintStore(dbPath string) (*FingerprintStore, error) {
	sqldb, err := db.NewSqliteDB(db.WithPath(dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open fingerprint store: %w", err)
	}

	if _, err := sqldb.Exec(storeSchema); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("init fingerprint store schema: %w", err)
	}

	return &FingerprintStore{db: sqldb}, nil
}

func (s *FingerprintStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the record for a path, or nil if none exists.
func (s *FingerprintStore) Get(path string) (*FileRecord, error) {
	var row storeRow
	err := s.db.Get(&row, "SELECT * FROM file_records WHERE path = ?", path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query record %s: %w", path, err)
	}
	return row.toRecord()
}

// Put inserts or replaces the record for record.Path.
func (s *FingerprintStore) Put(record *FileRecord) error {
	if record == nil {
		return fmt.Errorf("cannot put nil record")
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO file_records
		 (path, content_hash, size, modified_at, last_synced_at, remote_doc_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.Path,
		record.ContentHash,
		record.Size,
		record.ModifiedAt.Format(time.RFC3339Nano),
		record.LastSyncedAt.Format(time.RFC3339Nano),
		record.RemoteDocID,
	)
	if err != nil {
		return fmt.Errorf("put record %s: %w", record.Path, err)
	}
	return nil
}

// Delete removes the record for a path. Deleting a missing path is a no-op.
func (s *FingerprintStore) Delete(path string) error {
	if _, err := s.db.Exec("DELETE FROM file_records WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete record %s: %w", path, err)
	}
	return nil
}

// ListUnder returns all records whose path is the given root or lies beneath it.
func (s *FingerprintStore) ListUnder(root string) ([]*FileRecord, error) {
	root = strings.TrimRight(root, "/")

	var rows []storeRow
	err := s.db.Select(&rows,
		"SELECT * FROM file_records WHERE path = ? OR path LIKE ? ORDER BY path",
		root, root+"/%")
	if err != nil {
		return nil, fmt.Errorf("list records under %s: %w", root, err)
	}

	records := make([]*FileRecord, 0, len(rows))
	for i := range rows {
		record, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Count returns the number of records in the store.
func (s *FingerprintStore) Count() (int, error) {
	var count int
	if err := s.db.Get(&count, "SELECT COUNT(*) FROM file_records"); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}
