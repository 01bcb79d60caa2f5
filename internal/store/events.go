package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	opPut    = "put"
	opDelete = "delete"
)

// logEvent appends a change to kv_events inside tx and returns its id.
func (m *SQLiteMedium) logEvent(ctx context.Context, tx *sql.Tx, key, op string, at time.Time) (uint64, error) {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO kv_events (key, op, origin, created_at) VALUES (?, ?, ?, ?)`,
		key, op, m.origin, at,
	)
	if err != nil {
		return 0, fmt.Errorf("logging event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting event id: %w", err)
	}
	return uint64(id), nil
}

func (m *SQLiteMedium) pollLoop() {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if err := m.poll(context.Background()); err != nil {
				m.logger.Warn("polling change log failed", "error", err)
			}
		}
	}
}

// poll emits changes committed by other origins since the last poll. Only
// the newest event per key is emitted; the value is read as of now.
func (m *SQLiteMedium) poll(ctx context.Context) error {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, key, op FROM kv_events WHERE id > ? AND origin != ? ORDER BY id`,
		m.lastSeen, m.origin,
	)
	if err != nil {
		return fmt.Errorf("querying change log: %w", err)
	}

	type event struct {
		id  int64
		key string
		op  string
	}
	var order []string
	latest := map[string]event{}
	for rows.Next() {
		var e event
		if err := rows.Scan(&e.id, &e.key, &e.op); err != nil {
			rows.Close()
			return fmt.Errorf("scanning change log: %w", err)
		}
		if _, seen := latest[e.key]; !seen {
			order = append(order, e.key)
		}
		latest[e.key] = e
		if e.id > m.lastSeen {
			m.lastSeen = e.id
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, key := range order {
		e := latest[key]
		c := Change{Key: key, Revision: uint64(e.id), Deleted: e.op == opDelete}
		if !c.Deleted {
			v, err := m.Get(ctx, key)
			if errors.Is(err, ErrNotFound) {
				c.Deleted = true
			} else if err != nil {
				return err
			} else {
				c.Value = v
			}
		}
		m.watch.emit(c)
	}
	return nil
}
