package sync

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	gosync "sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultSettleQueueSize = 256

	// DefaultRescanInterval is the fallback reconciliation period. The OS
	// notification layer gives no signal when a subscription silently dies,
	// so the periodic scan is the recovery path for missed events and must
	// stay on unless explicitly disabled.
	DefaultRescanInterval = 5 * time.Minute
)

// CoordinatorConfig tunes the watch lifecycle.
type CoordinatorConfig struct {
	// InitialScan runs a full reconciliation scan before subscribing to live
	// notifications.
	InitialScan bool
	// RescanInterval re-runs the reconciliation scan periodically. Zero
	// selects DefaultRescanInterval; negative disables periodic rescans.
	RescanInterval time.Duration
	// ScanWorkers bounds concurrent walk submission during a scan.
	ScanWorkers int
	// DrainTimeout bounds how long Stop waits for in-flight deliveries.
	DrainTimeout time.Duration
}

func (c *CoordinatorConfig) applyDefaults() {
	if c.RescanInterval == 0 {
		c.RescanInterval = DefaultRescanInterval
	}
	if c.ScanWorkers <= 0 {
		c.ScanWorkers = 4
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 30 * time.Second
	}
}

// Coordinator owns the watch lifecycle: the OS notification subscription, the
// initial and periodic reconciliation scans, and the wiring between the
// debouncer and the delivery pipeline.
type Coordinator struct {
	target   *WatchTarget
	store    *FingerprintStore
	pipeline *Pipeline
	cfg      CoordinatorConfig

	watcher   *Watcher
	debouncer *Debouncer
	settles   chan Settle

	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        gosync.WaitGroup
	muScan    gosync.Mutex
	stopOnce  gosync.Once
}

func NewCoordinator(target *WatchTarget, store *FingerprintStore, pipeline *Pipeline, cfg CoordinatorConfig) *Coordinator {
	cfg.applyDefaults()
	return &Coordinator{
		target:   target,
		store:    store,
		pipeline: pipeline,
		cfg:      cfg,
		settles:  make(chan Settle, defaultSettleQueueSize),
	}
}

// Start brings the engine up: pipeline workers, optional initial scan, then
// the live notification path. It returns once everything is running.
func (c *Coordinator) Start(ctx context.Context) error {
	slog.Info("coordinator start",
		"root", c.target.Root,
		"recursive", c.target.Recursive,
		"debounce", c.target.Debounce,
		"initialScan", c.cfg.InitialScan,
		"rescanEvery", c.cfg.RescanInterval,
	)

	c.runCtx, c.cancelRun = context.WithCancel(ctx)
	c.pipeline.Start(ctx)

	if c.cfg.InitialScan {
		if err := c.Scan(c.runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("initial reconciliation scan failed", "error", err)
		}
	}

	c.debouncer = NewDebouncer(c.target.Debounce, c.enqueueSettle)

	c.watcher = NewWatcher(c.target)
	if err := c.watcher.Start(); err != nil {
		return err
	}

	// Settle consumers: they feed the pipeline queue, keeping backpressure
	// off the notification-delivery goroutine.
	workers := c.cfg.ScanWorkers
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.settleLoop()
	}

	c.wg.Add(1)
	go c.relayLoop()

	if c.cfg.RescanInterval > 0 {
		c.wg.Add(1)
		go c.rescanLoop()
	}

	return nil
}

// Stop tears the engine down: release the subscription, flush the debouncer,
// then drain the pipeline up to the configured timeout.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		slog.Info("coordinator stop")

		c.cancelRun()
		if c.watcher != nil {
			c.watcher.Stop()
		}
		if c.debouncer != nil {
			c.debouncer.Stop()
		}
		c.wg.Wait()

		c.pipeline.Stop(c.cfg.DrainTimeout)
	})
}

// enqueueSettle hands a settle to the evaluation workers, blocking on the
// bounded queue for backpressure.
func (c *Coordinator) enqueueSettle(settle Settle) {
	select {
	case c.settles <- settle:
	case <-c.runCtx.Done():
		// Shutting down; the next reconciliation scan owns this path.
	}
}

// relayLoop pumps raw OS events into the debouncer. The notification layer
// never closes the raw channel, not even on platform failure, so a silently
// dead subscription is undetectable here; the periodic reconciliation scan
// is what re-establishes ground truth for anything missed.
func (c *Coordinator) relayLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.runCtx.Done():
			return
		case event, ok := <-c.watcher.Events():
			if !ok {
				return
			}
			c.debouncer.Notify(event.Path())
		}
	}
}

func (c *Coordinator) settleLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.runCtx.Done():
			return
		case settle := <-c.settles:
			c.process(c.runCtx, settle.Path)
		}
	}
}

// process hands one path to the pipeline, which evaluates it under the
// per-path gate and delivers any confirmed change. Keeping evaluation inside
// the gate means a settle for an in-flight path is judged only against
// committed store state.
func (c *Coordinator) process(ctx context.Context, path string) {
	if err := c.pipeline.Submit(ctx, path); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("change not admitted", "path", path, "error", err)
	}
}

// Scan walks the whole subtree into the delivery pipeline, bypassing the
// debouncer, then sweeps the fingerprint store for paths that vanished while
// the agent wasn't looking. At most one scan runs at a time.
func (c *Coordinator) Scan(ctx context.Context) error {
	if !c.muScan.TryLock() {
		return ErrScanRunning
	}
	defer c.muScan.Unlock()

	tstart := time.Now()
	seen := mapset.NewSet[string]()

	workers := pool.New().WithMaxGoroutines(c.cfg.ScanWorkers)

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("scan walk error", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if !c.target.Recursive && path != c.target.Root {
				return filepath.SkipDir
			}
			return nil
		}

		seen.Add(path)
		workers.Go(func() {
			c.process(ctx, path)
		})
		return nil
	}

	walkErr := filepath.WalkDir(c.target.Root, walkFn)
	workers.Wait()

	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		return walkErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Records with no file behind them are deletions that happened while
	// unwatched; evaluating the vanished path enqueues the delete.
	records, err := c.store.ListUnder(c.target.Root)
	if err != nil {
		return err
	}

	deletions := 0
	for _, record := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !seen.Contains(record.Path) {
			deletions++
			c.process(ctx, record.Path)
		}
	}

	slog.Info("reconciliation scan complete",
		"files", seen.Cardinality(),
		"vanished", deletions,
		"took", time.Since(tstart),
	)
	return nil
}

// rescanLoop re-runs the reconciliation scan on a fixed interval. A timer is
// used instead of a ticker so a slow scan never queues a second tick.
func (c *Coordinator) rescanLoop() {
	defer c.wg.Done()

	timer := time.NewTimer(c.cfg.RescanInterval)
	defer timer.Stop()

	for {
		select {
		case <-c.runCtx.Done():
			return
		case <-timer.C:
			if err := c.Scan(c.runCtx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrScanRunning) {
				slog.Error("periodic reconciliation scan failed", "error", err)
			}
			timer.Reset(c.cfg.RescanInterval)
		}
	}
}
