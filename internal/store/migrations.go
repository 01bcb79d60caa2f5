package store

import (
	"database/sql"
	"fmt"
	"time"
)

// migrate creates all tables if they don't exist and seeds metadata.
func (m *SQLiteMedium) migrate() error {
	bootstrapDone, err := m.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}

	if !bootstrapDone {
		if err := m.runBootstrapDDL(); err != nil {
			return err
		}
	}

	if err := m.seedMeta(); err != nil {
		return fmt.Errorf("seeding metadata: %w", err)
	}

	if !bootstrapDone {
		if err := m.setMetaFlag("schema_bootstrap_complete"); err != nil {
			return fmt.Errorf("marking bootstrap complete: %w", err)
		}
	}

	if err := m.migrateEventOriginIndex(); err != nil {
		return fmt.Errorf("migrating event index: %w", err)
	}
	return nil
}

func (m *SQLiteMedium) runBootstrapDDL() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Append-only change log; ids double as revisions.
		`CREATE TABLE IF NOT EXISTS kv_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			key        TEXT NOT NULL,
			op         TEXT NOT NULL,
			origin     TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning bootstrap: %w", err)
	}
	defer tx.Rollback()
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing bootstrap DDL: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing bootstrap: %w", err)
	}
	return nil
}

func (m *SQLiteMedium) isMetaFlagEnabled(key string) (bool, error) {
	var exists int
	if err := m.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	var value string
	err := m.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return value == "true", nil
}

func (m *SQLiteMedium) setMetaFlag(key string) error {
	_, err := m.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, 'true')", key)
	return err
}

func (m *SQLiteMedium) seedMeta() error {
	defaults := map[string]string{
		"schema_version": "1",
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range defaults {
		if _, err := m.db.Exec("INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("seeding meta key %q: %w", k, err)
		}
	}
	return nil
}

// migrateEventOriginIndex speeds up the poll query, which skips this
// process's own events.
func (m *SQLiteMedium) migrateEventOriginIndex() error {
	done, err := m.isMetaFlagEnabled("kv_events_origin_index_v1")
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	if _, err := m.db.Exec(`CREATE INDEX IF NOT EXISTS idx_kv_events_origin ON kv_events(origin, id)`); err != nil {
		return fmt.Errorf("creating kv_events index: %w", err)
	}
	return m.setMetaFlag("kv_events_origin_index_v1")
}
