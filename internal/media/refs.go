package media

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/starford/mediacheck/internal/cloze"
	"github.com/starford/mediacheck/internal/models"
)

// DefaultPatterns locate media references in rendered HTML. Each pattern
// must capture the file name in a group named fname.
var DefaultPatterns = []string{
	`(?i)(<img[^>]* src=(?!['"])(?<fname>[^ >]+)[^>]*?>)`,
	`(?i)(<img[^>]* src=(?<q>["'])(?<fname>[^>]+?)\k<q>[^>]*?>)`,
	`(?i)(\[sound:(?<fname>[^\]]+)\])`,
}

const patternTimeout = time.Second

var remoteRe = regexp.MustCompile(`(?i)^(https?|ftp)://`)

// IsRemote reports whether a reference points at a network location.
func IsRemote(ref string) bool {
	return remoteRe.MatchString(ref)
}

// CompilePatterns compiles reference patterns and checks that each one
// captures a group named fname.
func CompilePatterns(patterns []string) ([]*regexp2.Regexp, error) {
	out := make([]*regexp2.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("media: compile pattern %q: %w", p, err)
		}
		if !slices.Contains(re.GetGroupNames(), "fname") {
			return nil, fmt.Errorf("media: pattern %q has no fname group", p)
		}
		re.MatchTimeout = patternTimeout
		out = append(out, re)
	}
	return out, nil
}

// FilesInNote renders every variant of the note and returns the distinct
// media file names it references, in order of first appearance. A note
// whose LaTeX failed to build is tagged LaTeXError and saved.
func (c *Checker) FilesInNote(ctx context.Context, note *models.Note, nt *models.NoteType) ([]string, bool, error) {
	refs, hadError, err := c.ReferencedFiles(ctx, note, nt)
	if err != nil {
		return nil, hadError, err
	}

	changed := false
	if hadError {
		changed = note.AddTag(models.LatexErrorTag)
	} else if c.clearFixedTags {
		changed = note.RemoveTag(models.LatexErrorTag)
	}
	if changed {
		if err := c.store.UpdateNote(ctx, note); err != nil {
			return nil, hadError, fmt.Errorf("media: save tags for note %d: %w", note.ID, err)
		}
		c.logger.Debug("check: updated latex tag",
			slog.Int64("note", note.ID), slog.Bool("latex_error", hadError))
	}
	return refs, hadError, nil
}

// ReferencedFiles is FilesInNote without the tag bookkeeping: the note is
// never modified or saved. Uncached LaTeX images are still built.
func (c *Checker) ReferencedFiles(ctx context.Context, note *models.Note, nt *models.NoteType) ([]string, bool, error) {
	kind := models.KindStandard
	if nt != nil {
		kind = nt.Kind
	}

	var refs []string
	seen := make(map[string]struct{})
	hadError := false
	for _, variant := range cloze.For(kind).Expand(note.Fields) {
		html, failed := c.renderer.Render(ctx, variant, nt)
		hadError = hadError || failed
		for _, re := range c.patterns {
			names, err := findNames(re, html)
			if err != nil {
				return nil, hadError, fmt.Errorf("media: note %d: %w", note.ID, err)
			}
			for _, name := range names {
				if !c.includeRemote && IsRemote(name) {
					continue
				}
				if _, ok := seen[name]; ok {
					continue
				}
				seen[name] = struct{}{}
				refs = append(refs, name)
			}
		}
	}
	return refs, hadError, nil
}

func findNames(re *regexp2.Regexp, html string) ([]string, error) {
	var names []string
	m, err := re.FindStringMatch(html)
	for m != nil && err == nil {
		if g := m.GroupByName("fname"); g != nil && g.String() != "" {
			names = append(names, g.String())
		}
		m, err = re.FindNextMatch(m)
	}
	return names, err
}
