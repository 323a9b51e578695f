package sync

import (
	"log/slog"

	"github.com/rjeczalik/notify"
)

const rawEventBufferSize = 256

// Watcher owns the OS filesystem notification subscription for one subtree.
// It produces a lazy, non-restartable stream of raw events. The notification
// layer reports no runtime failures: a subscription that dies silently is
// only recovered by the coordinator's periodic reconciliation scan.
type Watcher struct {
	target *WatchTarget
	raw    chan notify.EventInfo
}

func NewWatcher(target *WatchTarget) *Watcher {
	return &Watcher{target: target}
}

// Start subscribes to create/write/remove/rename notifications. Events may be
// duplicated or out of order for rapid changes; the debouncer and hash-based
// evaluation downstream absorb that.
func (w *Watcher) Start() error {
	w.raw = make(chan notify.EventInfo, rawEventBufferSize)

	watchPath := w.target.Root
	if w.target.Recursive {
		watchPath += "/..."
	}

	if err := notify.Watch(watchPath, w.raw, notify.Create|notify.Write|notify.Remove|notify.Rename); err != nil {
		return err
	}

	slog.Info("watcher started", "root", w.target.Root, "recursive", w.target.Recursive)
	return nil
}

// Events returns the raw notification channel.
func (w *Watcher) Events() <-chan notify.EventInfo {
	return w.raw
}

// Stop releases the OS subscription. notify stops delivering but leaves the
// channel open; consumers exit via their own context.
func (w *Watcher) Stop() {
	if w.raw != nil {
		notify.Stop(w.raw)
	}
	slog.Info("watcher stopped", "root", w.target.Root)
}
