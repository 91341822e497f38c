// Package media reconciles note references against the media folder.
//
// A check renders every note (building LaTeX images on demand), collects
// the file names it references, and compares them with the folder listing
// to report missing and unused files.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/google/uuid"

	"github.com/starford/mediacheck/internal/apperr"
	"github.com/starford/mediacheck/internal/collection"
	"github.com/starford/mediacheck/internal/i18n"
	"github.com/starford/mediacheck/internal/mediadb"
	"github.com/starford/mediacheck/internal/models"
	"github.com/starford/mediacheck/internal/storage"
)

// DefaultMaxPasses bounds how many times a check restarts after renaming files.
const DefaultMaxPasses = 5

// MediaChecker is the media check used by the service layer.
type MediaChecker interface {
	Check(ctx context.Context, src Source) (*models.CheckResult, error)
	FilesInNote(ctx context.Context, note *models.Note, nt *models.NoteType) ([]string, bool, error)
	ReferencedFiles(ctx context.Context, note *models.Note, nt *models.NoteType) ([]string, bool, error)
}

var _ MediaChecker = (*Checker)(nil)

// Renderer replaces LaTeX markers in HTML with image tags.
type Renderer interface {
	Render(ctx context.Context, html string, nt *models.NoteType) (string, bool)
}

// MetaStore records checksums of media files.
type MetaStore interface {
	FindChanges(ctx context.Context, dir string, names []string) (*mediadb.Changes, error)
	Rebuild(ctx context.Context) error
}

// Source selects where the list of media files comes from.
type Source struct {
	files    []string
	snapshot bool
}

// LiveFolder lists the media folder on disk and may rename files in it.
func LiveFolder() Source { return Source{} }

// Snapshot checks against a fixed list of file names and never touches the folder.
func Snapshot(files []string) Source {
	return Source{files: slices.Clone(files), snapshot: true}
}

// IsSnapshot reports whether the source is a fixed file list.
func (s Source) IsSnapshot() bool { return s.snapshot }

// Option configures a Checker.
type Option func(*Checker)

// WithMetaStore enables the checksum scan at the end of each check.
func WithMetaStore(m MetaStore) Option {
	return func(c *Checker) { c.meta = m }
}

// WithTranslator sets the language used for warnings.
func WithTranslator(t *i18n.Translator) Option {
	return func(c *Checker) {
		if t != nil {
			c.tr = t
		}
	}
}

// WithLogger sets the checker logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIncludeRemote keeps http, https and ftp references in the results.
func WithIncludeRemote(include bool) Option {
	return func(c *Checker) { c.includeRemote = include }
}

// WithClearFixedTags removes the LaTeXError tag from notes that render cleanly.
func WithClearFixedTags(clear bool) Option {
	return func(c *Checker) { c.clearFixedTags = clear }
}

// WithMaxPasses overrides DefaultMaxPasses. Values below one are ignored.
func WithMaxPasses(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.maxPasses = n
		}
	}
}

// WithNFCPolicy sets when non-NFC file names are renamed.
func WithNFCPolicy(p NFCPolicy) Option {
	return func(c *Checker) {
		if p != "" {
			c.nfc = p
		}
	}
}

// WithPatterns replaces DefaultPatterns.
func WithPatterns(patterns []string) Option {
	return func(c *Checker) {
		if len(patterns) > 0 {
			c.rawPatterns = patterns
		}
	}
}

// Checker finds missing and unused media.
type Checker struct {
	store    collection.Store
	folder   storage.Provider
	renderer Renderer
	meta     MetaStore
	tr       *i18n.Translator
	logger   *slog.Logger

	rawPatterns    []string
	patterns       []*regexp2.Regexp
	includeRemote  bool
	clearFixedTags bool
	maxPasses      int
	nfc            NFCPolicy
}

// NewChecker builds a checker over the notes in store and the files in folder.
func NewChecker(store collection.Store, folder storage.Provider, renderer Renderer, opts ...Option) (*Checker, error) {
	c := &Checker{
		store:       store,
		folder:      folder,
		renderer:    renderer,
		tr:          i18n.New(""),
		logger:      slog.Default(),
		rawPatterns: DefaultPatterns,
		maxPasses:   DefaultMaxPasses,
		nfc:         NFCAuto,
	}
	for _, opt := range opts {
		opt(c)
	}
	patterns, err := CompilePatterns(c.rawPatterns)
	if err != nil {
		return nil, err
	}
	c.patterns = patterns
	return c, nil
}

// passResult is what one walk over the notes and the folder produced.
type passResult struct {
	missing    []string
	unused     []string
	invalid    []string
	errorNotes int
	sawDir     bool
	renamed    int
}

// Check compares note references with the media source. It only returns
// an error when the notes cannot be read; everything else is reported as
// a warning in the result.
func (c *Checker) Check(ctx context.Context, src Source) (*models.CheckResult, error) {
	res := &models.CheckResult{RunID: uuid.NewString()}
	log := c.logger.With(slog.String("run", res.RunID))
	log.Info("check: started", slog.Bool("snapshot", src.IsSnapshot()))

	var pr *passResult
	for pass := 1; ; pass++ {
		var err error
		pr, err = c.pass(ctx, src, log)
		if err != nil {
			return nil, err
		}
		res.Passes = pass
		res.Renamed += pr.renamed
		if pr.renamed == 0 {
			break
		}
		if pass >= c.maxPasses {
			log.Warn("check: pass limit reached", slog.Int("passes", pass))
			res.Warnings = append(res.Warnings, c.tr.Text(i18n.PassLimit, pass))
			break
		}
		log.Info("check: files renamed, restarting", slog.Int("renamed", pr.renamed))
	}

	res.Missing = nonNil(pr.missing)
	res.Unused = nonNil(pr.unused)
	res.ErrorNotes = pr.errorNotes

	c.scanMetadata(ctx, src, log)

	for _, name := range pr.invalid {
		res.Warnings = append(res.Warnings, c.tr.Text(i18n.InvalidFileName, name))
	}
	if pr.sawDir {
		res.Warnings = append(res.Warnings, c.tr.Text(i18n.SubfoldersUnsupported))
	}
	res.Warnings = append(res.Warnings, c.tr.Text(i18n.LatexErrors, pr.errorNotes))

	log.Info("check: finished",
		slog.Int("missing", len(res.Missing)),
		slog.Int("unused", len(res.Unused)),
		slog.Int("error_notes", res.ErrorNotes),
		slog.Int("passes", res.Passes))
	return res, nil
}

func (c *Checker) pass(ctx context.Context, src Source, log *slog.Logger) (*passResult, error) {
	pr := &passResult{}
	refs := make(map[string]struct{})

	err := c.store.EachNote(ctx, func(note models.Note) error {
		nt, err := c.noteType(ctx, note.NoteTypeID, log)
		if err != nil {
			return err
		}
		names, hadError, err := c.FilesInNote(ctx, &note, nt)
		if err != nil {
			return err
		}
		if !slices.ContainsFunc(names, func(n string) bool { return !isNFC(n) }) {
			addAll(refs, names)
			if hadError {
				pr.errorNotes++
			}
			return nil
		}

		note.Fields = toNFC(note.Fields)
		if err := c.store.UpdateNote(ctx, &note); err != nil {
			return fmt.Errorf("media: normalise note %d: %w", note.ID, err)
		}
		log.Info("check: normalised note to NFC", slog.Int64("note", note.ID))
		names, hadError, err = c.FilesInNote(ctx, &note, nt)
		if err != nil {
			return err
		}
		addAll(refs, names)
		if hadError {
			pr.errorNotes++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("media: read notes: %w", err)
	}

	entries, err := c.entries(src)
	if err != nil {
		return nil, err
	}
	renames := !src.IsSnapshot() && c.nfc.renames()
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			pr.sawDir = true
			continue
		}
		if strings.HasPrefix(name, "_") {
			continue
		}
		if IsIllegalName(name) {
			pr.invalid = append(pr.invalid, name)
			continue
		}
		// References are NFC, so compare against the NFC form even when
		// the file itself keeps its name on disk.
		key := toNFC(name)
		if renames && key != name {
			if nfc, ok := c.normaliseFile(name, log); ok {
				name = nfc
				pr.renamed++
			}
		}
		if _, ok := refs[key]; ok {
			delete(refs, key)
		} else {
			pr.unused = append(pr.unused, name)
		}
	}

	for name := range refs {
		if !strings.HasPrefix(name, "_") {
			pr.missing = append(pr.missing, name)
		}
	}
	slices.Sort(pr.missing)
	slices.Sort(pr.unused)
	return pr, nil
}

// noteType looks up a note's type. Notes whose type is gone are checked as
// standard notes with the default LaTeX settings.
func (c *Checker) noteType(ctx context.Context, id int64, log *slog.Logger) (*models.NoteType, error) {
	nt, err := c.store.NoteType(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Warn("check: unknown note type", slog.Int64("notetype", id))
		return &models.NoteType{ID: id, Kind: models.KindStandard}, nil
	}
	if err != nil {
		return nil, err
	}
	return nt, nil
}

func (c *Checker) entries(src Source) ([]storage.Entry, error) {
	if src.IsSnapshot() {
		out := make([]storage.Entry, len(src.files))
		for i, name := range src.files {
			out[i] = storage.Entry{Name: name}
		}
		return out, nil
	}
	entries, err := c.folder.List()
	if err != nil {
		return nil, fmt.Errorf("media: list folder: %w", err)
	}
	return entries, nil
}

// normaliseFile renames name to its NFC form, or deletes it when a file
// with the NFC name already exists.
func (c *Checker) normaliseFile(name string, log *slog.Logger) (string, bool) {
	nfc := toNFC(name)
	if c.folder.Exists(nfc) {
		if err := c.folder.Delete(name); err != nil {
			log.Warn("check: delete duplicate failed", slog.String("file", name), slog.String("error", err.Error()))
			return name, false
		}
		log.Info("check: deleted non-NFC duplicate", slog.String("file", name))
		return nfc, true
	}
	if err := c.folder.Rename(name, nfc); err != nil {
		log.Warn("check: rename to NFC failed", slog.String("file", name), slog.String("error", err.Error()))
		return name, false
	}
	log.Info("check: renamed to NFC", slog.String("file", nfc))
	return nfc, true
}

// scanMetadata refreshes the checksum store, rebuilding it when corrupt.
// Failures are logged and never fail the check.
func (c *Checker) scanMetadata(ctx context.Context, src Source, log *slog.Logger) {
	if c.meta == nil || c.folder == nil {
		return
	}
	var names []string
	if src.IsSnapshot() {
		names = src.files
	} else if entries, err := c.folder.List(); err == nil {
		for _, e := range entries {
			if !e.IsDir && !strings.HasPrefix(e.Name, "_") {
				names = append(names, e.Name)
			}
		}
	}

	_, err := c.meta.FindChanges(ctx, c.folder.Root(), names)
	if errors.Is(err, mediadb.ErrCorrupt) {
		log.Warn("check: media database corrupt, rebuilding", slog.String("error", err.Error()))
		if err = c.meta.Rebuild(ctx); err == nil {
			_, err = c.meta.FindChanges(ctx, c.folder.Root(), names)
		}
	}
	if err != nil {
		log.Warn("check: media database scan failed", slog.String("error", err.Error()))
	}
}

func addAll(set map[string]struct{}, names []string) {
	for _, n := range names {
		set[n] = struct{}{}
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
