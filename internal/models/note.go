// Package models defines the domain types for mediacheck.
package models

import (
	"strings"
	"time"
)

// FieldSeparator joins the fields of a note in storage.
const FieldSeparator = "\x1f"

// LatexErrorTag marks notes whose LaTeX failed to compile.
const LatexErrorTag = "LaTeXError"

// Kind selects how a note type's fields turn into renderable strings.
type Kind string

// Note type kinds.
const (
	KindStandard Kind = "standard"
	KindCloze    Kind = "cloze"
)

// Note is a single note in the collection.
type Note struct {
	ID         int64     `json:"id"`
	NoteTypeID int64     `json:"notetype_id"`
	Fields     string    `json:"fields"`
	Tags       []string  `json:"tags"`
	ModifiedAt time.Time `json:"modified_at"`
}

// FieldList splits the stored field string into individual fields.
func (n *Note) FieldList() []string {
	return strings.Split(n.Fields, FieldSeparator)
}

// SetFieldList joins fields back into the stored representation.
func (n *Note) SetFieldList(fields []string) {
	n.Fields = strings.Join(fields, FieldSeparator)
}

// HasTag reports whether the note carries tag (case-insensitive).
func (n *Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// AddTag adds tag unless already present. It reports whether the tags changed.
func (n *Note) AddTag(tag string) bool {
	if n.HasTag(tag) {
		return false
	}
	n.Tags = append(n.Tags, tag)
	return true
}

// RemoveTag drops every case-insensitive match of tag. It reports whether the tags changed.
func (n *Note) RemoveTag(tag string) bool {
	out := n.Tags[:0]
	removed := false
	for _, t := range n.Tags {
		if strings.EqualFold(t, tag) {
			removed = true
			continue
		}
		out = append(out, t)
	}
	n.Tags = out
	return removed
}

// NoteType describes the field layout and LaTeX preferences shared by notes.
type NoteType struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Kind      Kind   `json:"kind" yaml:"kind"`
	LatexSVG  bool   `json:"latex_svg" yaml:"latex_svg"`
	LatexPre  string `json:"latex_pre,omitempty" yaml:"latex_pre"`
	LatexPost string `json:"latex_post,omitempty" yaml:"latex_post"`
}

// IsCloze reports whether the note type uses cloze deletions.
func (nt *NoteType) IsCloze() bool {
	return nt != nil && nt.Kind == KindCloze
}

// ImageExt returns the extension used for this note type's LaTeX images.
func (nt *NoteType) ImageExt() string {
	if nt != nil && nt.LatexSVG {
		return "svg"
	}
	return "png"
}
