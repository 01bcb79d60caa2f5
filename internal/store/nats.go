package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the JetStream key-value bucket used when none is set.
const DefaultBucket = "KWGRAPH"

// NATSConfig holds configuration for NewNATSMedium.
type NATSConfig struct {
	URL     string
	Bucket  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NATSMedium implements Medium on a JetStream key-value bucket so that
// processes on different hosts share one keyword graph.
type NATSMedium struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	logger *slog.Logger
}

// NewNATSMedium connects to NATS and opens the bucket, creating it when it
// does not exist yet.
func NewNATSMedium(ctx context.Context, cfg NATSConfig) (*NATSMedium, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("kwgraph"), nats.Timeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.URL, err)
	}
	kv, err := OpenBucket(ctx, nc, cfg.Bucket)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSMedium{
		nc:     nc,
		kv:     kv,
		logger: cfg.Logger.With("medium", "nats", "bucket", cfg.Bucket),
	}, nil
}

// OpenBucket gets or creates a key-value bucket on an existing connection.
func OpenBucket(ctx context.Context, nc *nats.Conn, bucket string) (jetstream.KeyValue, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "kwgraph keyword graph",
		History:     1,
	})
	if errors.Is(err, jetstream.ErrBucketExists) {
		// Another process created it between the two calls.
		kv, err = js.KeyValue(ctx, bucket)
	}
	if err != nil {
		return nil, fmt.Errorf("opening bucket %s: %w", bucket, err)
	}
	return kv, nil
}

func (m *NATSMedium) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := m.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return entry.Value(), nil
}

func (m *NATSMedium) Put(ctx context.Context, key string, value []byte) error {
	if _, err := m.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// PutBatch writes entries one by one in order. JetStream key-value has no
// multi-key transaction, so callers order entries so that every prefix of
// the batch is a consistent state.
func (m *NATSMedium) PutBatch(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := m.Put(ctx, e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func (m *NATSMedium) Delete(ctx context.Context, key string) error {
	if err := m.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Watch streams every update to the bucket, including this process's own.
func (m *NATSMedium) Watch(ctx context.Context) (<-chan Change, error) {
	watcher, err := m.kv.WatchAll(ctx, jetstream.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("watching bucket: %w", err)
	}

	out := make(chan Change, watchBuffer)
	go func() {
		defer close(out)
		defer func() { _ = watcher.Stop() }()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				c := Change{
					Key:      entry.Key(),
					Value:    entry.Value(),
					Revision: entry.Revision(),
					Deleted:  entry.Operation() != jetstream.KeyValuePut,
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close drains the connection.
func (m *NATSMedium) Close() error {
	return m.nc.Drain()
}
