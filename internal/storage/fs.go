package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FS implements Provider backed by a local directory.
type FS struct {
	root string // absolute path to media folder
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute media folder path.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a file name inside the media folder. Only plain names
// are accepted: the folder is flat, so separators and dot entries are rejected.
func (f *FS) safePath(name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("storage: invalid name: %q", name)
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, os.PathSeparator) {
		return "", fmt.Errorf("storage: name must not contain a path separator: %s", name)
	}
	return filepath.Join(f.root, name), nil
}

// List returns the direct children of the media folder.
func (f *FS) List() ([]Entry, error) {
	des, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	out := make([]Entry, 0, len(des))
	for _, d := range des {
		isDir := d.IsDir()
		if d.Type()&os.ModeSymlink != 0 {
			// Follow links so a linked directory still counts as a directory.
			if info, statErr := os.Stat(filepath.Join(f.root, d.Name())); statErr == nil {
				isDir = info.IsDir()
			}
		}
		out = append(out, Entry{Name: d.Name(), IsDir: isDir})
	}
	return out, nil
}

// Exists reports whether name is present in the media folder.
func (f *FS) Exists(name string) bool {
	abs, err := f.safePath(name)
	if err != nil {
		return false
	}
	_, err = os.Lstat(abs)
	return err == nil
}

// Read returns the raw bytes of a media file.
func (f *FS) Read(name string) ([]byte, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(name string, content []byte) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}

	// Leading underscore keeps half-written files out of media checks.
	tmp, err := os.CreateTemp(f.root, "_mediacheck-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a file from the media folder.
func (f *FS) Delete(name string) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}

// Rename renames a file within the media folder.
func (f *FS) Rename(oldName, newName string) error {
	absOld, err := f.safePath(oldName)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(newName)
	if err != nil {
		return err
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: rename %s: %w", oldName, err)
	}
	return nil
}

var _ Provider = (*FS)(nil)
