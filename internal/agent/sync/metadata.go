package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ingestd/ingestd/internal/utils"
)

// ChecksumAlgorithm tags the checksum carried in NormalizedMetadata.
const ChecksumAlgorithm = "SHA-256"

// NormalizedMetadata is the canonical metadata record sent alongside file
// bytes. It is derived fresh from on-disk state on every sync attempt and
// never cached.
type NormalizedMetadata struct {
	SourcePath        string `json:"source_path"`
	RelativePath      string `json:"relative_path"`
	FolderPath        string `json:"folder_path"`
	FileSize          int64  `json:"file_size"`
	MimeType          string `json:"mime_type"`
	CreatedAt         string `json:"created_at"`
	ModifiedAt        string `json:"modified_at"`
	Owner             string `json:"owner"`
	Checksum          string `json:"checksum"`
	ChecksumAlgorithm string `json:"checksum_algorithm"`

	// modTime keeps the full-precision mtime from the stat that produced
	// this record; the RFC3339 ModifiedAt string is truncated to seconds.
	modTime time.Time
}

// ModTime returns the full-precision modification time observed when the
// metadata was derived.
func (m *NormalizedMetadata) ModTime() time.Time {
	return m.modTime
}

// NormalizeMetadata derives a NormalizedMetadata value from a file's current
// on-disk state. Side-effect-free and safe to call repeatedly. Returns
// ErrUnreadable if the file cannot be opened or statted, ErrTooLarge if its
// size exceeds maxSize (0 = no ceiling).
func NormalizeMetadata(path string, root string, maxSize int64) (*NormalizedMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (ceiling %d)", ErrTooLarge, path, info.Size(), maxSize)
	}

	checksum, err := HashFile(path)
	if err != nil {
		return nil, err
	}

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		relPath = filepath.Base(path)
	}

	createdAt, modifiedAt := fileTimes(info)

	return &NormalizedMetadata{
		SourcePath:        path,
		RelativePath:      filepath.ToSlash(relPath),
		FolderPath:        root,
		FileSize:          info.Size(),
		MimeType:          utils.DetectContentType(path),
		CreatedAt:         createdAt.Format(time.RFC3339),
		ModifiedAt:        modifiedAt.Format(time.RFC3339),
		Owner:             fileOwner(info),
		Checksum:          checksum,
		ChecksumAlgorithm: ChecksumAlgorithm,
		modTime:           modifiedAt,
	}, nil
}

// HashFile streams the full file content through SHA-256 and returns the hex
// digest. This is the authoritative equality test for change detection.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
