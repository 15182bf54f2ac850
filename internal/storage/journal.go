// Package storage persists the notification event stream to an embedded
// SQLite journal. The journal is append-only and purely observational: no
// core component reads it back for control flow.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/shizukutanaka/Kifuda/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind, created_at);
`

// Record is a persisted event row.
type Record struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Journal is the SQLite-backed event journal.
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the journal at path. Use ":memory:" for tests.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// One writer: SQLite serializes writes anyway and this avoids lock churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &Journal{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append persists one event envelope.
func (j *Journal) Append(ctx context.Context, env events.Envelope) error {
	payload, err := json.Marshal(env.Event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO events (id, kind, payload, created_at) VALUES (?, ?, ?, ?)`,
		env.ID, env.Kind, string(payload), env.Time,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Run consumes the channel until it closes or the context is done, appending
// every envelope. Append failures are logged and skipped; the journal must
// never stall the emitting call paths.
func (j *Journal) Run(ctx context.Context, ch <-chan events.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			if err := j.Append(ctx, env); err != nil {
				j.logger.Error("Journal append failed",
					zap.String("kind", env.Kind),
					zap.Error(err),
				)
			}
		}
	}
}

// Recent returns up to limit newest records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, payload, created_at FROM events ORDER BY created_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ByKind returns up to limit newest records of one kind, newest first.
func (j *Journal) ByKind(ctx context.Context, kind string, limit int) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, payload, created_at FROM events WHERE kind = ? ORDER BY created_at DESC, id LIMIT ?`,
		kind, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Count returns the total number of journaled events.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var payload string
		if err := rows.Scan(&r.ID, &r.Kind, &payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		r.Payload = json.RawMessage(payload)
		records = append(records, r)
	}
	return records, rows.Err()
}
