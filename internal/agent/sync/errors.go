package sync

import "errors"

var (
	// ErrUnreadable means a file could not be opened or read (vanished or
	// permission denied mid-hash).
	ErrUnreadable = errors.New("file unreadable")

	// ErrTooLarge means a file exceeds the configured size ceiling. Never
	// retried automatically.
	ErrTooLarge = errors.New("file exceeds size ceiling")

	// ErrRetriesExhausted means delivery gave up after the configured
	// maximum attempt count. The path stays eligible for re-evaluation on
	// the next reconciliation scan or live change.
	ErrRetriesExhausted = errors.New("delivery retries exhausted")

	// ErrScanRunning means a reconciliation scan is already in progress.
	ErrScanRunning = errors.New("reconciliation scan already running")

	// ErrPipelineStopped means the pipeline no longer admits new changes.
	ErrPipelineStopped = errors.New("delivery pipeline stopped")
)
