// Package noteservice coordinates the collection, the media checker and
// the LaTeX renderer behind a single API used by HTTP, MCP and the CLI.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/starford/mediacheck/internal/apperr"
	"github.com/starford/mediacheck/internal/collection"
	"github.com/starford/mediacheck/internal/media"
	"github.com/starford/mediacheck/internal/models"
)

// Publisher is notified after every completed check.
type Publisher interface {
	PublishCheck(res *models.CheckResult)
}

// RenderResult is the outcome of rendering one piece of HTML.
type RenderResult struct {
	HTML   string `json:"html"`
	Failed bool   `json:"failed"`
}

// Option configures a Service.
type Option func(*Service)

// WithLockFile guards checks with an exclusive file lock at path so that
// two processes never check the same collection at once.
func WithLockFile(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.lock = flock.New(path)
		}
	}
}

// WithPublisher sets where check results are announced.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service coordinates collection, checker and renderer operations.
type Service struct {
	store    collection.Store
	checker  media.MediaChecker
	renderer media.Renderer
	pub      Publisher
	lock     *flock.Flock
	mu       sync.Mutex
	logger   *slog.Logger
}

// NewService creates a new service.
func NewService(store collection.Store, checker media.MediaChecker, renderer media.Renderer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		checker:  checker,
		renderer: renderer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check runs a media check. A nil files slice checks the live folder;
// otherwise files is used as a snapshot of the folder contents. Only one
// check runs at a time; a concurrent call fails with apperr.ErrLocked.
func (s *Service) Check(ctx context.Context, files []string) (*models.CheckResult, error) {
	if !s.mu.TryLock() {
		return nil, apperr.ErrLocked
	}
	defer s.mu.Unlock()

	if s.lock != nil {
		ok, err := s.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("noteservice: lock %s: %w", s.lock.Path(), err)
		}
		if !ok {
			return nil, apperr.ErrLocked
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				s.logger.Warn("check: unlock failed", slog.String("error", err.Error()))
			}
		}()
	}

	src := media.LiveFolder()
	if files != nil {
		src = media.Snapshot(files)
	}
	res, err := s.checker.Check(ctx, src)
	if err != nil {
		return nil, err
	}
	if s.pub != nil {
		s.pub.PublishCheck(res)
	}
	return res, nil
}

// Render replaces the LaTeX markers in html using the settings of the
// given note type.
func (s *Service) Render(ctx context.Context, html string, noteTypeID int64) (*RenderResult, error) {
	nt, err := s.store.NoteType(ctx, noteTypeID)
	if err != nil {
		return nil, err
	}
	out, failed := s.renderer.Render(ctx, html, nt)
	return &RenderResult{HTML: out, Failed: failed}, nil
}

// CreateNote stores a new note. Its note type must exist.
func (s *Service) CreateNote(ctx context.Context, note *models.Note) (*models.Note, error) {
	if _, err := s.store.NoteType(ctx, note.NoteTypeID); err != nil {
		return nil, err
	}
	if note.Tags == nil {
		note.Tags = []string{}
	}
	if err := s.store.AddNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// GetNote returns a note by id.
func (s *Service) GetNote(ctx context.Context, id int64) (*models.Note, error) {
	return s.store.GetNote(ctx, id)
}

// FilesInNote returns the media referenced by a stored note. It is a read:
// the note's tags are left alone, though LaTeX images missing from the
// cache are built so their names can be reported.
func (s *Service) FilesInNote(ctx context.Context, id int64) ([]string, error) {
	note, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	nt, err := s.store.NoteType(ctx, note.NoteTypeID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	refs, _, err := s.checker.ReferencedFiles(ctx, note, nt)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(refs), nil
}

// LatexErrorNotes returns the ids of notes tagged LaTeXError by earlier checks.
func (s *Service) LatexErrorNotes(ctx context.Context) ([]int64, error) {
	ids, err := s.store.NoteIDsWithTag(ctx, models.LatexErrorTag)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(ids), nil
}

// AddNoteType creates or replaces a note type.
func (s *Service) AddNoteType(ctx context.Context, nt *models.NoteType) (*models.NoteType, error) {
	nt.Name = strings.TrimSpace(nt.Name)
	if err := s.store.AddNoteType(ctx, nt); err != nil {
		return nil, err
	}
	return nt, nil
}

// NoteTypes lists every note type.
func (s *Service) NoteTypes(ctx context.Context) ([]models.NoteType, error) {
	types, err := s.store.NoteTypes(ctx)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(types), nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
