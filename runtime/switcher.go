package runtime

import (
	"classroom-live/projection"
	"context"
	"log/slog"
	"sync"
)

// Switcher keeps at most one open session over a shared timeline.
// Opening a scope tears the previous session down first, so the old live
// connection is released before the new one is dialled.
type Switcher[T projection.Item] struct {
	mu       sync.Mutex
	log      *slog.Logger
	timeline *projection.Timeline[T]
	cfg      SessionConfig[T]
	current  *Session[T]
}

func NewSwitcher[T projection.Item](log *slog.Logger, timeline *projection.Timeline[T], cfg SessionConfig[T]) *Switcher[T] {
	return &Switcher[T]{log: log, timeline: timeline, cfg: cfg}
}

// Open makes scope the active one. Reopening the active scope starts over.
func (w *Switcher[T]) Open(ctx context.Context, scope string) *Session[T] {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != nil {
		w.log.Debug("Switching scope", "from", w.current.Scope(), "to", scope)
		w.current.Close()
	}
	w.current = OpenSession(ctx, w.log, w.timeline, w.cfg, scope)
	return w.current
}

// Current returns the active session, nil when none is open.
func (w *Switcher[T]) Current() *Session[T] {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *Switcher[T]) Timeline() *projection.Timeline[T] {
	return w.timeline
}

func (w *Switcher[T]) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != nil {
		w.current.Close()
		w.current = nil
	}
}
