// Package storage defines the media folder abstraction.
package storage

// Entry is one item found directly inside the media folder.
type Entry struct {
	Name  string
	IsDir bool
}

// Provider is the interface for media folder operations. Names are plain
// file names relative to the folder; the folder is flat.
type Provider interface {
	// Root returns the absolute path of the media folder.
	Root() string
	// List returns every entry directly inside the folder.
	List() ([]Entry, error)
	// Exists reports whether name exists in the folder.
	Exists(name string) bool
	// Read returns the raw bytes of the file name.
	Read(name string) ([]byte, error)
	// Write atomically writes content to name.
	Write(name string, content []byte) error
	// Rename renames oldName to newName.
	Rename(oldName, newName string) error
	// Delete removes name.
	Delete(name string) error
}
