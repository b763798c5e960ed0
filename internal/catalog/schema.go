// Package catalog provides SQLite-backed metadata storage for projects,
// assets, backpack items, and classroom assignments.
package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	owner_id    TEXT NOT NULL DEFAULT '',
	original_id TEXT NOT NULL DEFAULT '',
	is_copy     INTEGER NOT NULL DEFAULT 0,
	is_remix    INTEGER NOT NULL DEFAULT 0,
	snapshot_id TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL DEFAULT '',
	thumbnail   TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id, updated_at);

CREATE TABLE IF NOT EXISTS assets (
	id          TEXT PRIMARY KEY,
	asset_type  TEXT NOT NULL,
	data_format TEXT NOT NULL,
	size        INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS backpack_items (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	name       TEXT NOT NULL,
	mime       TEXT NOT NULL,
	body       TEXT NOT NULL,
	thumbnail  TEXT NOT NULL,
	owner_id   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_backpack_owner ON backpack_items(owner_id, updated_at);

CREATE TABLE IF NOT EXISTS assignments (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	creator_id  TEXT NOT NULL DEFAULT '',
	due_at      DATETIME,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS assignment_targets (
	assignment_id TEXT NOT NULL,
	kind          TEXT NOT NULL,
	target_id     TEXT NOT NULL,
	UNIQUE(assignment_id, kind, target_id)
);

CREATE INDEX IF NOT EXISTS idx_targets_assignment ON assignment_targets(assignment_id);

CREATE TABLE IF NOT EXISTS submissions (
	id            TEXT PRIMARY KEY,
	assignment_id TEXT NOT NULL,
	project_id    TEXT NOT NULL,
	owner_id      TEXT NOT NULL DEFAULT '',
	frozen        INTEGER NOT NULL DEFAULT 0,
	submitted_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(assignment_id, project_id)
);
`

// DB wraps a sql.DB with catalog-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
