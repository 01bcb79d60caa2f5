package store

import (
	"context"
	"log/slog"
	"sync"
)

// watchBuffer bounds each watcher's backlog. A watcher that falls this far
// behind loses changes; KeywordStore always re-reads the whole key, so only
// the last change for a key matters.
const watchBuffer = 256

// watchers fans committed changes out to in-process Watch callers.
type watchers struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Change
	logger *slog.Logger
}

func newWatchers(logger *slog.Logger) *watchers {
	return &watchers{subs: make(map[int]chan Change), logger: logger}
}

// add registers a watcher that is removed and closed when ctx is done.
func (w *watchers) add(ctx context.Context) <-chan Change {
	ch := make(chan Change, watchBuffer)
	w.mu.Lock()
	id := w.next
	w.next++
	w.subs[id] = ch
	w.mu.Unlock()

	go func() {
		<-ctx.Done()
		w.mu.Lock()
		if _, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(ch)
		}
		w.mu.Unlock()
	}()
	return ch
}

func (w *watchers) emit(c Change) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- c:
		default:
			w.logger.Warn("watcher backlog full, dropping change", "key", c.Key, "revision", c.Revision)
		}
	}
}

func (w *watchers) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.subs {
		delete(w.subs, id)
		close(ch)
	}
}
