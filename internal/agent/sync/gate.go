package sync

import (
	"context"
	"sync"
)

// pathGate is the per-path admission gate: at most one holder per path at a
// time. A settle for an in-flight path waits for the current holder's
// terminal outcome before it may be admitted.
type pathGate struct {
	mu       sync.Mutex
	inflight map[string]chan struct{}
}

func newPathGate() *pathGate {
	return &pathGate{
		inflight: make(map[string]chan struct{}),
	}
}

// Acquire blocks until the gate for path is free or ctx is done.
func (g *pathGate) Acquire(ctx context.Context, path string) error {
	for {
		g.mu.Lock()
		released, held := g.inflight[path]
		if !held {
			g.inflight[path] = make(chan struct{})
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release frees the gate for path and wakes all waiters.
func (g *pathGate) Release(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if released, held := g.inflight[path]; held {
		delete(g.inflight, path)
		close(released)
	}
}

// InFlight reports whether a holder currently owns the gate for path.
func (g *pathGate) InFlight(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.inflight[path]
	return held
}
