// Package store provides SQLite-backed persistence for exported
// decision events.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema. The table is keyed by
// event_id so re-running an export never double-counts.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS decision_events (
	event_id       TEXT PRIMARY KEY,
	ts             REAL,
	type           TEXT,
	decision       TEXT,
	next_step      TEXT,
	confidence     REAL,
	score          REAL,
	risk_level     TEXT,
	schema_version TEXT
);
CREATE INDEX IF NOT EXISTS idx_decision_events_ts ON decision_events(ts);
CREATE INDEX IF NOT EXISTS idx_decision_events_type ON decision_events(type);
`

// NewDB opens a SQLite database at the given path with recommended
// pragmas and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
