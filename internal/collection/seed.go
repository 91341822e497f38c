package collection

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starford/mediacheck/internal/models"
)

type seedFile struct {
	NoteTypes []models.NoteType `yaml:"notetypes"`
}

// LoadNoteTypes reads note type definitions from a YAML file of the form
//
//	notetypes:
//	  - id: 1
//	    name: Basic
//	    kind: standard
func LoadNoteTypes(path string) ([]models.NoteType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("collection: read notetypes %s: %w", path, err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("collection: parse notetypes %s: %w", path, err)
	}
	for i, nt := range sf.NoteTypes {
		switch nt.Kind {
		case "":
			sf.NoteTypes[i].Kind = models.KindStandard
		case models.KindStandard, models.KindCloze:
		default:
			return nil, fmt.Errorf("collection: notetype %q: unknown kind %q", nt.Name, nt.Kind)
		}
	}
	return sf.NoteTypes, nil
}

// Seed upserts note types into the store.
func Seed(ctx context.Context, store Store, types []models.NoteType) error {
	for i := range types {
		if err := store.AddNoteType(ctx, &types[i]); err != nil {
			return err
		}
	}
	return nil
}
