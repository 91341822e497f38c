package collection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/starford/mediacheck/internal/apperr"
	"github.com/starford/mediacheck/internal/models"
)

// AddNoteType inserts or replaces a note type. A zero ID is assigned by the database.
func (db *DB) AddNoteType(ctx context.Context, nt *models.NoteType) error {
	if nt.Kind == "" {
		nt.Kind = models.KindStandard
	}
	var id any
	if nt.ID != 0 {
		id = nt.ID
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO notetypes (id, name, kind, latex_svg, latex_pre, latex_post)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			kind       = excluded.kind,
			latex_svg  = excluded.latex_svg,
			latex_pre  = excluded.latex_pre,
			latex_post = excluded.latex_post
	`, id, nt.Name, string(nt.Kind), nt.LatexSVG, nt.LatexPre, nt.LatexPost)
	if err != nil {
		return fmt.Errorf("collection: upsert notetype: %w", err)
	}
	if nt.ID == 0 {
		if nt.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("collection: notetype id: %w", err)
		}
	}
	db.types.Delete(typeKey(nt.ID))
	return nil
}

// NoteType returns the note type with the given id.
func (db *DB) NoteType(ctx context.Context, id int64) (*models.NoteType, error) {
	if v, ok := db.types.Get(typeKey(id)); ok {
		nt := v.(models.NoteType)
		return &nt, nil
	}
	var nt models.NoteType
	var kind string
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, kind, latex_svg, latex_pre, latex_post
		FROM notetypes WHERE id = ?
	`, id).Scan(&nt.ID, &nt.Name, &kind, &nt.LatexSVG, &nt.LatexPre, &nt.LatexPost)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection: notetype %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("collection: notetype %d: %w", id, err)
	}
	nt.Kind = models.Kind(kind)
	db.types.Set(typeKey(id), nt, cache.DefaultExpiration)
	return &nt, nil
}

// NoteTypes returns every note type ordered by id.
func (db *DB) NoteTypes(ctx context.Context) ([]models.NoteType, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, kind, latex_svg, latex_pre, latex_post
		FROM notetypes ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("collection: list notetypes: %w", err)
	}
	defer rows.Close()

	var out []models.NoteType
	for rows.Next() {
		var nt models.NoteType
		var kind string
		if err := rows.Scan(&nt.ID, &nt.Name, &kind, &nt.LatexSVG, &nt.LatexPre, &nt.LatexPost); err != nil {
			return nil, err
		}
		nt.Kind = models.Kind(kind)
		out = append(out, nt)
	}
	return out, rows.Err()
}

// AddNote inserts a new note. A zero ID is assigned by the database.
func (db *DB) AddNote(ctx context.Context, n *models.Note) error {
	if n.ModifiedAt.IsZero() {
		n.ModifiedAt = time.Now().UTC()
	}
	tagsJSON, err := encodeTags(n.Tags)
	if err != nil {
		return err
	}
	var id any
	if n.ID != 0 {
		id = n.ID
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO notes (id, notetype_id, flds, tags, mod) VALUES (?, ?, ?, ?, ?)
	`, id, n.NoteTypeID, n.Fields, tagsJSON, n.ModifiedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("collection: add note %d: %w", n.ID, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("collection: add note: %w", err)
	}
	if n.ID == 0 {
		if n.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("collection: note id: %w", err)
		}
	}
	return nil
}

// GetNote returns a single note by id.
func (db *DB) GetNote(ctx context.Context, id int64) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT id, notetype_id, flds, tags, mod FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection: note %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("collection: note %d: %w", id, err)
	}
	return n, nil
}

// UpdateNote persists the note's fields and tags and bumps its modification time.
func (db *DB) UpdateNote(ctx context.Context, n *models.Note) error {
	tagsJSON, err := encodeTags(n.Tags)
	if err != nil {
		return err
	}
	n.ModifiedAt = time.Now().UTC()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE notes SET flds = ?, tags = ?, mod = ? WHERE id = ?
	`, n.Fields, tagsJSON, n.ModifiedAt, n.ID)
	if err != nil {
		return fmt.Errorf("collection: update note %d: %w", n.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("collection: update note %d: %w", n.ID, apperr.ErrNotFound)
	}
	return nil
}

// EachNote calls fn for every note in id order. Rows are read up front so fn
// may update notes while iterating.
func (db *DB) EachNote(ctx context.Context, fn func(models.Note) error) error {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, notetype_id, flds, tags, mod FROM notes ORDER BY id`)
	if err != nil {
		return fmt.Errorf("collection: list notes: %w", err)
	}
	var notes []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("collection: scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

// NoteIDsWithTag returns the ids of notes carrying tag (case-insensitive).
func (db *DB) NoteIDsWithTag(ctx context.Context, tag string) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, tags FROM notes WHERE tags LIKE ? ORDER BY id`, "%"+tag+"%")
	if err != nil {
		return nil, fmt.Errorf("collection: notes with tag: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		n := models.Note{ID: id, Tags: decodeTags(raw)}
		if n.HasTag(tag) {
			out = append(out, id)
		}
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*models.Note, error) {
	var n models.Note
	var tags string
	if err := s.Scan(&n.ID, &n.NoteTypeID, &n.Fields, &tags, &n.ModifiedAt); err != nil {
		return nil, err
	}
	n.Tags = decodeTags(tags)
	return &n, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("collection: encode tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(raw string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

func typeKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
