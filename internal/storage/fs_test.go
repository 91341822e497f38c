package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempMedia(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempMedia(t)
	content := []byte("\x89PNG fake")
	if err := s.Write("a.png", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if !s.Exists("a.png") {
		t.Error("Exists = false after write")
	}
}

func TestDelete(t *testing.T) {
	s := tempMedia(t)
	_ = s.Write("del.jpg", []byte("bye"))
	if err := s.Delete("del.jpg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists("del.jpg") {
		t.Error("file still exists after delete")
	}
}

func TestRename(t *testing.T) {
	s := tempMedia(t)
	_ = s.Write("old.mp3", []byte("data"))
	if err := s.Rename("old.mp3", "new.mp3"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	got, err := s.Read("new.mp3")
	if err != nil {
		t.Fatalf("Read after rename: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if s.Exists("old.mp3") {
		t.Error("old name should not exist")
	}
}

func TestList_FlatWithDirs(t *testing.T) {
	s := tempMedia(t)
	_ = s.Write("a.png", []byte("a"))
	_ = s.Write("_ignored.css", []byte("b"))
	if err := os.Mkdir(filepath.Join(s.Root(), "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	dirs := 0
	for _, it := range items {
		if it.IsDir {
			dirs++
			if it.Name != "sub" {
				t.Errorf("unexpected dir %q", it.Name)
			}
		}
	}
	if dirs != 1 {
		t.Errorf("dirs = %d, want 1", dirs)
	}
}

func TestSeparatorsBlocked(t *testing.T) {
	s := tempMedia(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.png",
		"/etc/shadow",
		"sub/file.png",
		"..",
		"",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for name %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempMedia(t)
	_ = s.Write("atomic.svg", []byte("original"))
	if err := s.Write("atomic.svg", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.svg")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.Root(), "_mediacheck-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "mediacheck-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
