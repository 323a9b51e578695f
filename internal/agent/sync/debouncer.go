package sync

import (
	"log/slog"
	"sync"
	"time"
)

// Settle is a single coalesced signal that a path's filesystem state has
// stabilized after one or more raw OS notifications.
type Settle struct {
	Path string
	// At is the time of the last raw notification folded into this settle.
	At time.Time
}

// Debouncer collapses bursts of raw notifications for the same path into one
// settle signal, emitted interval after the last notification (trailing edge).
// Each path has at most one pending timer; a new notification resets it.
//
// The emit callback runs with the debouncer's internal lock held, so settles
// for the same path are emitted strictly in order. The callback must not call
// back into the debouncer.
type Debouncer struct {
	interval time.Duration
	emit     func(Settle)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]Settle
	stopped bool
}

func NewDebouncer(interval time.Duration, emit func(Settle)) *Debouncer {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &Debouncer{
		interval: interval,
		emit:     emit,
		timers:   make(map[string]*time.Timer),
		pending:  make(map[string]Settle),
	}
}

// Notify records a raw notification for path, arming or resetting its timer.
func (d *Debouncer) Notify(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending[path] = Settle{Path: path, At: time.Now()}

	if timer, ok := d.timers[path]; ok {
		timer.Reset(d.interval)
		return
	}
	d.timers[path] = time.AfterFunc(d.interval, func() {
		d.fire(path)
	})
}

// fire emits the pending settle for path, if any. A stale timer whose path
// was re-notified emits the most recent settle, never an older one.
func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	settle, ok := d.pending[path]
	if !ok {
		return
	}

	// A notification may land between this timer firing and it acquiring the
	// lock. Push the emission out so it stays interval after the last one.
	if remaining := d.interval - time.Since(settle.At); remaining > 0 {
		d.timers[path] = time.AfterFunc(remaining, func() {
			d.fire(path)
		})
		return
	}

	delete(d.pending, path)
	delete(d.timers, path)

	d.emit(settle)
}

// PendingCount returns the number of paths with an armed timer.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels all timers and flushes pending settles through emit. Further
// notifications are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true

	for path, timer := range d.timers {
		timer.Stop()
		if settle, ok := d.pending[path]; ok {
			slog.Debug("debouncer flushing pending settle on stop", "path", path)
			d.emit(settle)
		}
	}
	d.timers = make(map[string]*time.Timer)
	d.pending = make(map[string]Settle)
}
