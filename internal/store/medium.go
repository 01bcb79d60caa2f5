package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Medium.Get for a key that was never written or
// has been deleted.
var ErrNotFound = errors.New("key not found")

// Entry is one key/value pair of a batched write.
type Entry struct {
	Key   string
	Value []byte
}

// Change is a committed write observed through Medium.Watch.
type Change struct {
	Key      string
	Value    []byte
	Deleted  bool
	Revision uint64
}

// Medium is a shared key-value store with change notification. Every
// KeywordStore attached to the same medium observes the others' writes.
type Medium interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// PutBatch writes entries in order. Backends with transactions commit
	// them atomically; others write them one by one in the given order.
	PutBatch(ctx context.Context, entries []Entry) error
	Delete(ctx context.Context, key string) error
	// Watch streams changes committed after the call until ctx is done.
	Watch(ctx context.Context) (<-chan Change, error)
	Close() error
}
