// Package collection provides SQLite-backed storage for notes and note types.
package collection

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/patrickmn/go-cache"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notetypes (
	id         INTEGER PRIMARY KEY,
	name       TEXT    NOT NULL DEFAULT '',
	kind       TEXT    NOT NULL DEFAULT 'standard',
	latex_svg  INTEGER NOT NULL DEFAULT 0,
	latex_pre  TEXT    NOT NULL DEFAULT '',
	latex_post TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS notes (
	id          INTEGER PRIMARY KEY,
	notetype_id INTEGER  NOT NULL REFERENCES notetypes(id),
	flds        TEXT     NOT NULL DEFAULT '',
	tags        TEXT     NOT NULL DEFAULT '[]',
	mod         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notes_notetype ON notes(notetype_id);
`

// Note types change rarely and every note in a check looks one up.
const noteTypeTTL = 5 * time.Minute

// DB wraps a sql.DB with collection-specific operations.
type DB struct {
	conn  *sql.DB
	types *cache.Cache
}

// Open opens (or creates) the collection database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("collection: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("collection: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("collection: apply schema: %w", err)
	}
	return &DB{
		conn:  conn,
		types: cache.New(noteTypeTTL, 2*noteTypeTTL),
	}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
