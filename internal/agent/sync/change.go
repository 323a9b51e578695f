package sync

import "time"

// ChangeKind classifies a confirmed file change.
type ChangeKind uint8

const (
	ChangeCreated ChangeKind = iota
	ChangeModified
	ChangeDeleted
)

var changeKindNames = []string{
	"created",
	"modified",
	"deleted",
}

func (k ChangeKind) String() string {
	return changeKindNames[k]
}

// FileRecord is the persisted last-synced state of a file. A record exists
// for a path iff that path has been successfully delivered at least once and
// has not since been deleted remotely. ContentHash always reflects the bytes
// that were last successfully delivered.
type FileRecord struct {
	Path         string    `db:"path"`
	ContentHash  string    `db:"content_hash"`
	Size         int64     `db:"size"`
	ModifiedAt   time.Time `db:"modified_at"`
	LastSyncedAt time.Time `db:"last_synced_at"`
	RemoteDocID  string    `db:"remote_doc_id"`
}

// PendingChange is an in-flight unit of delivery work. It lives only inside
// the delivery pipeline and is destroyed on a terminal outcome.
type PendingChange struct {
	Path          string
	Kind          ChangeKind
	CandidateHash string
	Size          int64
	ModifiedAt    time.Time
	Attempts      int
	FirstSeen     time.Time

	// RemoteDocID carries the existing remote handle for modified/deleted
	// changes, used for update-vs-create decisions at the endpoint.
	RemoteDocID string
}
