package collection

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/mediacheck/internal/apperr"
	"github.com/starford/mediacheck/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "mediacheck-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM notetypes`).Scan(&count); err != nil {
		t.Fatalf("notetypes table missing: %v", err)
	}
}

func TestNoteTypeRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	nt := &models.NoteType{Name: "Cloze", Kind: models.KindCloze, LatexSVG: true, LatexPre: `\begin{document}`}
	if err := db.AddNoteType(ctx, nt); err != nil {
		t.Fatalf("AddNoteType: %v", err)
	}
	if nt.ID == 0 {
		t.Fatal("expected assigned id")
	}
	got, err := db.NoteType(ctx, nt.ID)
	if err != nil {
		t.Fatalf("NoteType: %v", err)
	}
	if got.Kind != models.KindCloze || !got.LatexSVG || got.LatexPre != `\begin{document}` {
		t.Errorf("got %+v", got)
	}
}

func TestNoteTypeUpdateInvalidatesCache(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	nt := &models.NoteType{ID: 7, Name: "Basic"}
	_ = db.AddNoteType(ctx, nt)
	if _, err := db.NoteType(ctx, 7); err != nil {
		t.Fatalf("NoteType: %v", err)
	}
	nt.LatexSVG = true
	_ = db.AddNoteType(ctx, nt)
	got, _ := db.NoteType(ctx, 7)
	if !got.LatexSVG {
		t.Error("cached note type not refreshed after update")
	}
}

func TestNoteType_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.NoteType(context.Background(), 99)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAddGetUpdateNote(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	nt := &models.NoteType{Name: "Basic"}
	_ = db.AddNoteType(ctx, nt)

	n := &models.Note{NoteTypeID: nt.ID, Fields: "front\x1fback"}
	if err := db.AddNote(ctx, n); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	n.AddTag(models.LatexErrorTag)
	n.Fields = "front\x1f<img src=a.png>"
	if err := db.UpdateNote(ctx, n); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}

	got, err := db.GetNote(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Fields != n.Fields {
		t.Errorf("fields = %q", got.Fields)
	}
	if !got.HasTag(models.LatexErrorTag) {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestAddNote_Duplicate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	nt := &models.NoteType{Name: "Basic"}
	_ = db.AddNoteType(ctx, nt)
	_ = db.AddNote(ctx, &models.Note{ID: 5, NoteTypeID: nt.ID})
	err := db.AddNote(ctx, &models.Note{ID: 5, NoteTypeID: nt.ID})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	db := testDB(t)
	err := db.UpdateNote(context.Background(), &models.Note{ID: 42})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEachNote_AllowsUpdates(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	nt := &models.NoteType{Name: "Basic"}
	_ = db.AddNoteType(ctx, nt)
	for i := 0; i < 3; i++ {
		_ = db.AddNote(ctx, &models.Note{NoteTypeID: nt.ID, Fields: "x"})
	}

	seen := 0
	err := db.EachNote(ctx, func(n models.Note) error {
		seen++
		n.AddTag("visited")
		return db.UpdateNote(ctx, &n)
	})
	if err != nil {
		t.Fatalf("EachNote: %v", err)
	}
	if seen != 3 {
		t.Errorf("seen = %d, want 3", seen)
	}
	ids, err := db.NoteIDsWithTag(ctx, "VISITED")
	if err != nil {
		t.Fatalf("NoteIDsWithTag: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("tagged = %v, want 3 ids", ids)
	}
}

func TestLoadNoteTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yaml")
	content := "notetypes:\n  - id: 1\n    name: Basic\n  - id: 2\n    name: Cloze\n    kind: cloze\n    latex_svg: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	types, err := LoadNoteTypes(path)
	if err != nil {
		t.Fatalf("LoadNoteTypes: %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("len = %d, want 2", len(types))
	}
	if types[0].Kind != models.KindStandard {
		t.Errorf("default kind = %q", types[0].Kind)
	}
	if types[1].Kind != models.KindCloze || !types[1].LatexSVG {
		t.Errorf("cloze type = %+v", types[1])
	}

	db := testDB(t)
	if err := Seed(context.Background(), db, types); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if _, err := db.NoteType(context.Background(), 2); err != nil {
		t.Errorf("seeded type missing: %v", err)
	}
}

func TestLoadNoteTypes_UnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yaml")
	_ = os.WriteFile(path, []byte("notetypes:\n  - name: Odd\n    kind: image\n"), 0o644)
	if _, err := LoadNoteTypes(path); err == nil {
		t.Error("expected error for unknown kind")
	}
}
