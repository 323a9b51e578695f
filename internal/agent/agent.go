// Package agent wires the watch coordinator, fingerprint store and remote
// client into a single long-running process.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
	"github.com/ingestd/ingestd/internal/agent/sync"
	"github.com/ingestd/ingestd/internal/ingestsdk"
	"github.com/ingestd/ingestd/internal/utils"
)

type Agent struct {
	config      *Config
	lock        *flock.Flock
	store       *sync.FingerprintStore
	sdk         *ingestsdk.Client
	pipeline    *sync.Pipeline
	coordinator *sync.Coordinator
}

// New builds a fully wired agent. The state directory is locked for the
// lifetime of the process so two agents never share one journal.
func New(config *Config) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := utils.EnsureDir(config.StateDir); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	lock := flock.New(config.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock state dir: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("state dir %q is in use by another agent", config.StateDir)
	}

	store, err := sync.NewFingerprintStore(config.JournalPath())
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("open fingerprint store: %w", err)
	}

	sdk, err := ingestsdk.New(config.ServerURL, config.APIKey, config.ConnectorID)
	if err != nil {
		lock.Unlock()
		store.Close()
		return nil, fmt.Errorf("create sdk: %w", err)
	}

	target, err := sync.NewWatchTarget(config.Root, config.Recursive, config.Include, config.DebounceInterval)
	if err != nil {
		lock.Unlock()
		store.Close()
		return nil, fmt.Errorf("create watch target: %w", err)
	}

	evaluator, err := sync.NewEvaluator(target, store, config.Exclude, config.MaxFileSize)
	if err != nil {
		lock.Unlock()
		store.Close()
		return nil, fmt.Errorf("create evaluator: %w", err)
	}

	pipeline := sync.NewPipeline(sdk, store, evaluator, target, config.MaxFileSize, sync.PipelineConfig{
		Workers:     config.Workers,
		QueueSize:   config.QueueSize,
		MaxAttempts: config.MaxAttempts,
		BackoffBase: config.BackoffBase,
		BackoffMax:  config.BackoffMax,
	})

	coordinator := sync.NewCoordinator(target, store, pipeline, sync.CoordinatorConfig{
		InitialScan:    config.InitialScan,
		RescanInterval: config.RescanInterval,
		DrainTimeout:   config.DrainTimeout,
	})

	return &Agent{
		config:      config,
		lock:        lock,
		store:       store,
		sdk:         sdk,
		pipeline:    pipeline,
		coordinator: coordinator,
	}, nil
}

// Start runs the agent until ctx is cancelled, then drains and shuts down.
func (a *Agent) Start(ctx context.Context) error {
	slog.Info("agent start",
		"root", a.config.Root,
		"recursive", a.config.Recursive,
		"server", a.config.ServerURL,
		"connector", a.config.ConnectorID,
		"state", a.config.StateDir,
	)

	if err := a.coordinator.Start(ctx); err != nil {
		a.release()
		return fmt.Errorf("start coordinator: %w", err)
	}

	<-ctx.Done()
	slog.Info("shutdown requested, draining deliveries")

	a.coordinator.Stop()
	a.release()
	slog.Info("agent stop")
	return nil
}

// RunScan performs a single reconciliation pass and drains the pipeline.
// Used by the one-shot scan command; the watcher is never started.
func (a *Agent) RunScan(ctx context.Context) error {
	defer a.release()

	a.pipeline.Start(ctx)

	err := a.coordinator.Scan(ctx)
	a.pipeline.Stop(a.config.DrainTimeout)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	stats := a.pipeline.Stats()
	slog.Info("scan complete",
		"delivered", stats.Delivered,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed,
		"retries", stats.Retries,
	)
	return nil
}

func (a *Agent) release() {
	a.sdk.Close()
	if err := a.store.Close(); err != nil {
		slog.Error("close fingerprint store", "error", err)
	}
	if err := a.lock.Unlock(); err != nil {
		slog.Error("release state dir lock", "error", err)
	}
}
