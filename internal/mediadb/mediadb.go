// Package mediadb keeps a checksum and mtime record of every file in the
// media folder so that later scans only re-hash files that changed.
package mediadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/mediacheck/internal/checksum"
)

// ErrCorrupt is returned when the database fails its integrity check or
// its schema cannot be used.
var ErrCorrupt = errors.New("mediadb: database is corrupt")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS media (
	fname TEXT    PRIMARY KEY,
	csum  TEXT    NOT NULL,
	mtime INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	dir_mod INTEGER NOT NULL DEFAULT 0
);
`

// Changes lists the files added (or modified) and removed by a scan.
type Changes struct {
	Added   []string
	Removed []string
}

// DB is the media metadata store. It is safe for concurrent use.
type DB struct {
	mu   sync.Mutex
	path string
	conn *sql.DB
}

// Open prepares the database at path. The file is not read until the first
// scan, so a corrupt file surfaces as ErrCorrupt from FindChanges.
func Open(path string) (*DB, error) {
	conn, err := openConn(path)
	if err != nil {
		return nil, err
	}
	return &DB{path: path, conn: conn}, nil
}

func openConn(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("mediadb: open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes the underlying connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// FindChanges reconciles the stored records with names found in dir.
// Files whose mtime is unchanged are not re-hashed. Names that no longer
// exist on disk are treated as removed.
func (db *DB) FindChanges(ctx context.Context, dir string, names []string) (*Changes, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.verify(ctx); err != nil {
		return nil, err
	}

	known := make(map[string]int64)
	rows, err := db.conn.QueryContext(ctx, `SELECT fname, mtime FROM media`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for rows.Next() {
		var name string
		var mtime int64
		if err := rows.Scan(&name, &mtime); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		known[name] = mtime
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mediadb: begin: %w", err)
	}
	defer tx.Rollback()

	ch := &Changes{}
	present := make(map[string]struct{}, len(names))
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.IsDir() {
			continue
		}
		present[name] = struct{}{}
		mtime := info.ModTime().Unix()
		if prev, ok := known[name]; ok && prev == mtime {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("mediadb: read %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO media (fname, csum, mtime) VALUES (?, ?, ?)
			ON CONFLICT(fname) DO UPDATE SET csum = excluded.csum, mtime = excluded.mtime
		`, name, checksum.Sum(data), mtime); err != nil {
			return nil, fmt.Errorf("mediadb: upsert %s: %w", name, err)
		}
		ch.Added = append(ch.Added, name)
	}
	for name := range known {
		if _, ok := present[name]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM media WHERE fname = ?`, name); err != nil {
			return nil, fmt.Errorf("mediadb: delete %s: %w", name, err)
		}
		ch.Removed = append(ch.Removed, name)
	}

	if info, err := os.Stat(dir); err == nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM meta`); err != nil {
			return nil, fmt.Errorf("mediadb: reset meta: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (dir_mod) VALUES (?)`, info.ModTime().Unix()); err != nil {
			return nil, fmt.Errorf("mediadb: write meta: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("mediadb: commit: %w", err)
	}
	return ch, nil
}

// Files returns the stored checksum for every recorded file. A database
// that has never been scanned has none.
func (db *DB) Files(ctx context.Context) (map[string]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.verify(ctx); err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx, `SELECT fname, csum FROM media`)
	if err != nil {
		return nil, fmt.Errorf("mediadb: list: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, sum string
		if err := rows.Scan(&name, &sum); err != nil {
			return nil, fmt.Errorf("mediadb: scan: %w", err)
		}
		out[name] = sum
	}
	return out, rows.Err()
}

// Rebuild discards the database file and recreates an empty one.
func (db *DB) Rebuild(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_ = db.conn.Close()
	for _, p := range []string{db.path, db.path + "-wal", db.path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("mediadb: remove %s: %w", filepath.Base(p), err)
		}
	}
	conn, err := openConn(db.path)
	if err != nil {
		return err
	}
	db.conn = conn
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("mediadb: apply schema: %w", err)
	}
	return nil
}

// verify runs the integrity check and makes sure the schema exists.
// Callers must hold db.mu.
func (db *DB) verify(ctx context.Context) error {
	var result string
	if err := db.conn.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: integrity check: %s", ErrCorrupt, result)
	}
	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: apply schema: %v", ErrCorrupt, err)
	}
	return nil
}
