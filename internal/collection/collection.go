package collection

import (
	"context"

	"github.com/starford/mediacheck/internal/models"
)

// Store defines the note storage operations used by the rest of the module.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Store interface {
	AddNoteType(ctx context.Context, nt *models.NoteType) error
	NoteType(ctx context.Context, id int64) (*models.NoteType, error)
	NoteTypes(ctx context.Context) ([]models.NoteType, error)
	AddNote(ctx context.Context, n *models.Note) error
	GetNote(ctx context.Context, id int64) (*models.Note, error)
	UpdateNote(ctx context.Context, n *models.Note) error
	EachNote(ctx context.Context, fn func(models.Note) error) error
	NoteIDsWithTag(ctx context.Context, tag string) ([]int64, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
