// Package store persists the keyword graph in a shared key-value medium and
// keeps every attached KeywordStore in sync.
//
// Three media are provided:
//   - SQLiteMedium: a single SQLite file shared by processes on one host
//   - NATSMedium: a JetStream key-value bucket shared across hosts
//   - MemoryMedium: an in-process map for tests and one-shot commands
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.kwgraph/kwgraph.db"

// DefaultPollInterval is how often a SQLiteMedium looks for writes made by
// other processes.
const DefaultPollInterval = time.Second

// SQLiteConfig holds configuration for NewSQLiteMedium.
type SQLiteConfig struct {
	DBPath       string
	PollInterval time.Duration
	Logger       *slog.Logger
}

// SQLiteMedium implements Medium on a SQLite file. Writes from this medium
// are delivered to its watchers immediately; writes from other processes are
// picked up from the kv_events log on every poll.
type SQLiteMedium struct {
	db           *sql.DB
	dbPath       string
	origin       string
	pollInterval time.Duration
	logger       *slog.Logger
	watch        *watchers

	pollOnce sync.Once
	stop     chan struct{}
	closed   sync.Once
	lastSeen int64
}

// NewSQLiteMedium opens or creates the database and runs migrations.
// Pass ":memory:" for an in-memory database (testing).
func NewSQLiteMedium(cfg SQLiteConfig) (*SQLiteMedium, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	cfg.DBPath = ExpandPath(cfg.DBPath)
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// Create parent directory for non-memory databases
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	m := &SQLiteMedium{
		db:           db,
		dbPath:       cfg.DBPath,
		origin:       uuid.NewString(),
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger.With("medium", "sqlite"),
		stop:         make(chan struct{}),
	}
	m.watch = newWatchers(m.logger)

	if err := m.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := m.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM kv_events`).Scan(&m.lastSeen); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading event cursor: %w", err)
	}
	return m, nil
}

// Path returns the database path in use.
func (m *SQLiteMedium) Path() string { return m.dbPath }

func (m *SQLiteMedium) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := m.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}

func (m *SQLiteMedium) Put(ctx context.Context, key string, value []byte) error {
	return m.PutBatch(ctx, []Entry{{Key: key, Value: value}})
}

// PutBatch commits every entry in one transaction.
func (m *SQLiteMedium) PutBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning write: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	changes := make([]Change, 0, len(entries))
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			e.Key, e.Value, now,
		); err != nil {
			return fmt.Errorf("writing %s: %w", e.Key, err)
		}
		rev, err := m.logEvent(ctx, tx, e.Key, opPut, now)
		if err != nil {
			return err
		}
		changes = append(changes, Change{Key: e.Key, Value: e.Value, Revision: rev})
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing write: %w", err)
	}

	for _, c := range changes {
		m.watch.emit(c)
	}
	return nil
}

func (m *SQLiteMedium) Delete(ctx context.Context, key string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	rev, err := m.logEvent(ctx, tx, key, opDelete, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	m.watch.emit(Change{Key: key, Deleted: true, Revision: rev})
	return nil
}

// Watch returns changes made through this medium plus, after the next poll,
// changes other processes committed to the same file.
func (m *SQLiteMedium) Watch(ctx context.Context) (<-chan Change, error) {
	ch := m.watch.add(ctx)
	m.pollOnce.Do(func() { go m.pollLoop() })
	return ch, nil
}

// Close stops polling, closes watchers, and closes the database.
func (m *SQLiteMedium) Close() error {
	var err error
	m.closed.Do(func() {
		close(m.stop)
		m.watch.closeAll()
		err = m.db.Close()
	})
	return err
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
