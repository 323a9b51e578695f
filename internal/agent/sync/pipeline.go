package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ingestd/ingestd/internal/ingestsdk"
)

// Outcome is the terminal result of one PendingChange.
type Outcome uint8

const (
	OutcomeDelivered Outcome = iota
	OutcomeDuplicate
	OutcomeFailed
	// OutcomeIndeterminate means the attempt was force-cancelled mid-flight
	// during shutdown. No store commit happens; the next reconciliation scan
	// re-evaluates the path.
	OutcomeIndeterminate
)

var outcomeNames = []string{"delivered", "duplicate", "failed", "indeterminate"}

func (o Outcome) String() string {
	return outcomeNames[o]
}

// RemoteEndpoint is the slice of the ingestion API the pipeline needs.
// Satisfied by *ingestsdk.Client.
type RemoteEndpoint interface {
	UploadDocument(ctx context.Context, params *ingestsdk.UploadParams) (*ingestsdk.UploadResponse, error)
	DeleteDocument(ctx context.Context, docID string) error
}

// PipelineConfig bounds the pipeline's concurrency and retry behavior.
type PipelineConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (c *PipelineConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
}

// PipelineStats are operator-visible delivery counters.
type PipelineStats struct {
	Delivered  uint64
	Duplicates uint64
	Failed     uint64
	Retries    uint64
}

// Pipeline turns settled paths into terminal delivery outcomes with bounded
// concurrency and exponential-backoff retries. Evaluation and delivery for a
// path form one critical section under the per-path admission gate: a settle
// for an in-flight path is never judged against pre-commit store state, it
// waits for the current holder's terminal outcome first. The pipeline is the
// only component that mutates the fingerprint store, and only after remote
// confirmation.
type Pipeline struct {
	endpoint  RemoteEndpoint
	store     *FingerprintStore
	evaluator *Evaluator
	target    *WatchTarget
	cfg       PipelineConfig

	gate  *pathGate
	queue chan string

	mu      sync.RWMutex
	stopped bool

	cancelInflight context.CancelFunc
	wg             sync.WaitGroup

	delivered  atomic.Uint64
	duplicates atomic.Uint64
	failed     atomic.Uint64
	retries    atomic.Uint64

	maxFileSize int64
}

func NewPipeline(endpoint RemoteEndpoint, store *FingerprintStore, evaluator *Evaluator, target *WatchTarget, maxFileSize int64, cfg PipelineConfig) *Pipeline {
	cfg.applyDefaults()
	return &Pipeline{
		endpoint:    endpoint,
		store:       store,
		evaluator:   evaluator,
		target:      target,
		cfg:         cfg,
		gate:        newPathGate(),
		queue:       make(chan string, cfg.QueueSize),
		maxFileSize: maxFileSize,
	}
}

// Start launches the worker pool. Workers inherit a derived context so that a
// drain timeout can force-cancel in-flight attempts.
func (p *Pipeline) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancelInflight = cancel

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}
	slog.Info("delivery pipeline started", "workers", p.cfg.Workers, "maxAttempts", p.cfg.MaxAttempts)
}

// Submit enqueues a path for evaluation and delivery, blocking for
// backpressure until queue space is available or ctx is done. Returns
// ErrPipelineStopped after Stop.
func (p *Pipeline) Submit(ctx context.Context, path string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPipelineStopped
	}

	select {
	case p.queue <- path:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes intake and drains in-flight work. Attempts still running when
// the drain timeout expires are force-cancelled; their outcomes are
// indeterminate and no store commit occurs for them.
func (p *Pipeline) Stop(drainTimeout time.Duration) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		slog.Warn("drain timeout reached, cancelling in-flight deliveries")
		p.cancelInflight()
		<-done
	}

	stats := p.Stats()
	slog.Info("delivery pipeline stopped",
		"delivered", stats.Delivered,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed,
		"retries", stats.Retries,
	)
}

// InFlight reports whether a change for path is currently admitted.
func (p *Pipeline) InFlight(path string) bool {
	return p.gate.InFlight(path)
}

// Stats returns a snapshot of the delivery counters.
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		Delivered:  p.delivered.Load(),
		Duplicates: p.duplicates.Load(),
		Failed:     p.failed.Load(),
		Retries:    p.retries.Load(),
	}
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()

	for path := range p.queue {
		if err := p.gate.Acquire(ctx, path); err != nil {
			return
		}
		p.handle(ctx, path)
		p.gate.Release(path)
	}
}

// handle evaluates one path and drives any confirmed change to a terminal
// outcome, committing the store on delivered/duplicate. Evaluation runs here,
// under the gate, so the store state it reads is always post-commit for this
// path.
func (p *Pipeline) handle(ctx context.Context, path string) {
	eval, err := p.evaluator.Evaluate(path)
	if err != nil {
		slog.Error("evaluation failed", "path", path, "error", err)
		return
	}
	if eval.Decision != DecisionChanged {
		return
	}
	change := eval.Change
	slog.Debug("change confirmed", "path", path, "kind", change.Kind, "reason", eval.Reason)

	start := time.Now()
	outcome, docID, meta, err := p.deliver(ctx, change)

	switch outcome {
	case OutcomeDelivered, OutcomeDuplicate:
		if commitErr := p.commit(change, docID, meta); commitErr != nil {
			slog.Error("fingerprint commit failed", "path", change.Path, "error", commitErr)
			return
		}
		if outcome == OutcomeDelivered {
			p.delivered.Add(1)
		} else {
			p.duplicates.Add(1)
		}
		slog.Info("change delivered",
			"path", change.Path,
			"kind", change.Kind,
			"outcome", outcome,
			"docId", docID,
			"size", humanize.Bytes(uint64(change.Size)),
			"attempts", change.Attempts,
			"took", time.Since(start),
		)

	case OutcomeFailed:
		p.failed.Add(1)
		slog.Error("change delivery failed",
			"path", change.Path,
			"kind", change.Kind,
			"attempts", change.Attempts,
			"error", err,
		)

	case OutcomeIndeterminate:
		slog.Warn("change delivery interrupted, will re-evaluate on next scan",
			"path", change.Path,
			"kind", change.Kind,
		)
	}
}

// deliver is the explicit retry state machine for one PendingChange:
// attempt, classify, back off, repeat until terminal. On success it returns
// the metadata actually uploaded so the commit reflects delivered bytes.
func (p *Pipeline) deliver(ctx context.Context, change *PendingChange) (Outcome, string, *NormalizedMetadata, error) {
	for attempt := 1; ; attempt++ {
		change.Attempts = attempt

		outcome, docID, meta, err := p.attempt(ctx, change)
		if outcome != OutcomeFailed {
			return outcome, docID, meta, err
		}
		if ctx.Err() != nil {
			// Force-cancelled mid-flight; no commit, path re-evaluated later.
			return OutcomeIndeterminate, "", nil, ctx.Err()
		}
		if errors.Is(err, ErrUnreadable) || errors.Is(err, ErrTooLarge) {
			// Local terminal failures; the next settle or scan owns the path.
			return outcome, docID, meta, err
		}
		if !ingestsdk.IsRetryable(err) {
			return outcome, docID, meta, err
		}

		if attempt >= p.cfg.MaxAttempts {
			return OutcomeFailed, "", nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempt, err)
		}

		delay := backoffDelay(p.cfg.BackoffBase, p.cfg.BackoffMax, attempt)
		p.retries.Add(1)
		slog.Warn("delivery attempt failed, backing off",
			"path", change.Path,
			"attempt", attempt,
			"retryIn", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return OutcomeIndeterminate, "", nil, ctx.Err()
		}
	}
}

// attempt performs a single remote request. Metadata (including the checksum)
// is recomputed fresh from disk on every attempt.
func (p *Pipeline) attempt(ctx context.Context, change *PendingChange) (Outcome, string, *NormalizedMetadata, error) {
	if change.Kind == ChangeDeleted {
		if err := p.endpoint.DeleteDocument(ctx, change.RemoteDocID); err != nil {
			if errors.Is(err, context.Canceled) {
				return OutcomeIndeterminate, "", nil, err
			}
			return OutcomeFailed, "", nil, err
		}
		return OutcomeDelivered, change.RemoteDocID, nil, nil
	}

	meta, err := NormalizeMetadata(change.Path, p.target.Root, p.maxFileSize)
	if err != nil {
		// The file mutated or vanished between evaluation and delivery; a
		// follow-up settle or the next scan owns whatever it became.
		return OutcomeFailed, "", nil, err
	}

	resp, err := p.endpoint.UploadDocument(ctx, &ingestsdk.UploadParams{
		FilePath:      change.Path,
		Metadata:      meta,
		ExistingDocID: change.RemoteDocID,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return OutcomeIndeterminate, "", nil, err
		}
		return OutcomeFailed, "", nil, err
	}

	if resp.Status == ingestsdk.StatusDuplicate {
		return OutcomeDuplicate, resp.DocumentID, meta, nil
	}
	return OutcomeDelivered, resp.DocumentID, meta, nil
}

// commit writes the confirmed state into the fingerprint store. This is the
// only place the store is mutated, strictly after remote confirmation.
func (p *Pipeline) commit(change *PendingChange, docID string, meta *NormalizedMetadata) error {
	if change.Kind == ChangeDeleted {
		return p.store.Delete(change.Path)
	}

	modifiedAt := meta.ModTime()
	if modifiedAt.IsZero() {
		modifiedAt = change.ModifiedAt
	}

	return p.store.Put(&FileRecord{
		Path:         change.Path,
		ContentHash:  meta.Checksum,
		Size:         meta.FileSize,
		ModifiedAt:   modifiedAt,
		LastSyncedAt: time.Now().UTC(),
		RemoteDocID:  docID,
	})
}

// backoffDelay doubles from base per attempt, capped at max.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
