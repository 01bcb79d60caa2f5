package store

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryMedium is a process-local Medium. Stores sharing one MemoryMedium
// behave like browser tabs sharing one origin's storage.
type MemoryMedium struct {
	mu       sync.RWMutex
	data     map[string][]byte
	revision uint64
	watch    *watchers
}

// NewMemoryMedium creates an empty in-process medium.
func NewMemoryMedium(logger *slog.Logger) *MemoryMedium {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryMedium{data: make(map[string][]byte), watch: newWatchers(logger)}
}

func (m *MemoryMedium) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryMedium) Put(ctx context.Context, key string, value []byte) error {
	return m.PutBatch(ctx, []Entry{{Key: key, Value: value}})
}

func (m *MemoryMedium) PutBatch(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	changes := make([]Change, 0, len(entries))
	for _, e := range entries {
		m.revision++
		v := append([]byte(nil), e.Value...)
		m.data[e.Key] = v
		changes = append(changes, Change{Key: e.Key, Value: v, Revision: m.revision})
	}
	m.mu.Unlock()

	for _, c := range changes {
		m.watch.emit(c)
	}
	return nil
}

func (m *MemoryMedium) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	if _, ok := m.data[key]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.data, key)
	m.revision++
	c := Change{Key: key, Deleted: true, Revision: m.revision}
	m.mu.Unlock()

	m.watch.emit(c)
	return nil
}

func (m *MemoryMedium) Watch(ctx context.Context) (<-chan Change, error) {
	return m.watch.add(ctx), nil
}

func (m *MemoryMedium) Close() error {
	m.watch.closeAll()
	return nil
}
