// Package store provides SQLite-backed persistence for cases, their
// monitoring state and their docket movements.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cases (
	id         TEXT PRIMARY KEY,
	number     TEXT NOT NULL UNIQUE,
	title      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS monitoring (
	case_id          TEXT PRIMARY KEY REFERENCES cases(id),
	enabled          INTEGER NOT NULL DEFAULT 0,
	frequency        TEXT NOT NULL DEFAULT '',
	last_checked_at  DATETIME,
	total_seen       INTEGER NOT NULL DEFAULT 0,
	payload_checksum TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS movements (
	id            TEXT PRIMARY KEY,
	case_id       TEXT NOT NULL REFERENCES cases(id),
	code          INTEGER NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	date          DATETIME NOT NULL,
	supplement    TEXT NOT NULL DEFAULT '',
	source_system TEXT NOT NULL DEFAULT '',
	read          INTEGER NOT NULL DEFAULT 0,
	recorded_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_movements_case ON movements(case_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_movements_unread ON movements(case_id) WHERE read = 0;
`

// DB wraps a sql.DB with tribuna-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
