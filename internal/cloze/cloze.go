// Package cloze enumerates the renderable strings of a note's content.
//
// Standard note types render their content as-is. Cloze note types produce
// one card per deletion index, so LaTeX and media references are checked
// once per card.
package cloze

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/starford/mediacheck/internal/models"
)

// Marker is the substring that signals cloze deletions may be present.
const Marker = "{{c"

// deletionRe matches {{cN::text}} and {{cN::text::hint}}.
var deletionRe = regexp.MustCompile(`(?s)\{\{c(\d+)::(.*?)(::(.*?))?\}\}`)

// Expander turns stored note content into the strings that get rendered.
type Expander interface {
	Expand(content string) []string
}

// Standard renders content unchanged.
type Standard struct{}

// Expand returns content as the only variant.
func (Standard) Expand(content string) []string {
	return []string{content}
}

// Cloze renders one variant per distinct deletion index.
type Cloze struct{}

// Expand returns one variant per cloze index in ascending order. Variant k is
// the answer side of card k: deletion k is highlighted and every other
// deletion is revealed as plain text. Content without deletions is returned
// unchanged.
func (Cloze) Expand(content string) []string {
	if !strings.Contains(content, Marker) {
		return []string{content}
	}
	ords := Indices(content)
	if len(ords) == 0 {
		return []string{content}
	}
	out := make([]string, 0, len(ords))
	for _, ord := range ords {
		out = append(out, reveal(content, ord))
	}
	return out
}

// Indices returns the distinct deletion indices in content, sorted.
func Indices(content string) []int {
	seen := make(map[int]struct{})
	var ords []int
	for _, m := range deletionRe.FindAllStringSubmatch(content, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		ords = append(ords, n)
	}
	sort.Ints(ords)
	return ords
}

func reveal(content string, ord int) string {
	want := strconv.Itoa(ord)
	return deletionRe.ReplaceAllStringFunc(content, func(match string) string {
		m := deletionRe.FindStringSubmatch(match)
		if m[1] == want {
			return "<span class=cloze>" + m[2] + "</span>"
		}
		return m[2]
	})
}

// For returns the expander matching a note type kind.
func For(kind models.Kind) Expander {
	if kind == models.KindCloze {
		return Cloze{}
	}
	return Standard{}
}
