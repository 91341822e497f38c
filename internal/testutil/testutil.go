// Package testutil provides shared test helpers for setting up collections and media folders.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/mediacheck/internal/collection"
	"github.com/starford/mediacheck/internal/storage"
)

// TestCollection creates a temporary collection database that is automatically cleaned up.
func TestCollection(t *testing.T) *collection.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "mediacheck-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := collection.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestMediaFolder creates a temporary media folder with a storage.Provider.
func TestMediaFolder(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	folder, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, folder
}

// WriteFiles creates each named file in dir with placeholder content.
func WriteFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("media:"+name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// QuietLogger returns a logger that discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
