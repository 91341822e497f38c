package noteservice

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"github.com/starford/mediacheck/internal/apperr"
	"github.com/starford/mediacheck/internal/collection"
	"github.com/starford/mediacheck/internal/latex"
	"github.com/starford/mediacheck/internal/media"
	"github.com/starford/mediacheck/internal/models"
	"github.com/starford/mediacheck/internal/testutil"
)

type recordingPublisher struct {
	mu      sync.Mutex
	results []*models.CheckResult
}

func (p *recordingPublisher) PublishCheck(res *models.CheckResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, res)
}

type fixture struct {
	dir   string
	store *collection.DB
	basic *models.NoteType
	svc   *Service
	pub   *recordingPublisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir, folder := testutil.TestMediaFolder(t)
	store := testutil.TestCollection(t)
	renderer := latex.NewRenderer(folder, nil)

	checker, err := media.NewChecker(store, folder, renderer, media.WithLogger(testutil.QuietLogger()))
	if err != nil {
		t.Fatalf("NewChecker: %v", err)
	}

	basic := &models.NoteType{Name: "Basic"}
	if err := store.AddNoteType(context.Background(), basic); err != nil {
		t.Fatalf("AddNoteType: %v", err)
	}

	pub := &recordingPublisher{}
	opts = append([]Option{WithPublisher(pub), WithLogger(testutil.QuietLogger())}, opts...)
	return &fixture{
		dir:   dir,
		store: store,
		basic: basic,
		svc:   NewService(store, checker, renderer, opts...),
		pub:   pub,
	}
}

func (f *fixture) addNote(t *testing.T, fields ...string) *models.Note {
	t.Helper()
	n := &models.Note{NoteTypeID: f.basic.ID}
	n.SetFieldList(fields)
	created, err := f.svc.CreateNote(context.Background(), n)
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	return created
}

func TestCheck_LiveFolderPublishes(t *testing.T) {
	f := newFixture(t)
	f.addNote(t, `<img src="used.png">`, `<img src="gone.png">`)
	testutil.WriteFiles(t, f.dir, "used.png", "extra.png")

	res, err := f.svc.Check(context.Background(), nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !slices.Equal(res.Missing, []string{"gone.png"}) {
		t.Errorf("missing = %v", res.Missing)
	}
	if !slices.Equal(res.Unused, []string{"extra.png"}) {
		t.Errorf("unused = %v", res.Unused)
	}
	if len(f.pub.results) != 1 || f.pub.results[0].RunID != res.RunID {
		t.Errorf("published = %v, want the check result", f.pub.results)
	}
}

func TestCheck_Snapshot(t *testing.T) {
	f := newFixture(t)
	f.addNote(t, "[sound:a.mp3]", "")
	testutil.WriteFiles(t, f.dir, "on-disk.png")

	res, err := f.svc.Check(context.Background(), []string{"a.mp3", "listed.png"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res.Missing) != 0 {
		t.Errorf("missing = %v, want none", res.Missing)
	}
	if !slices.Equal(res.Unused, []string{"listed.png"}) {
		t.Errorf("unused = %v, want only the snapshot name", res.Unused)
	}
}

func TestCheck_EmptySnapshotIsNotLive(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFiles(t, f.dir, "on-disk.png")

	res, err := f.svc.Check(context.Background(), []string{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res.Unused) != 0 {
		t.Errorf("unused = %v, empty snapshot must ignore the folder", res.Unused)
	}
}

func TestCheck_LockedByOtherProcess(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "collection.lock")
	f := newFixture(t, WithLockFile(lockPath))

	other := flock.New(lockPath)
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}

	if _, err := f.svc.Check(context.Background(), nil); !errors.Is(err, apperr.ErrLocked) {
		t.Errorf("err = %v, want ErrLocked", err)
	}
	if len(f.pub.results) != 0 {
		t.Error("a refused check must not publish")
	}

	if err := other.Unlock(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Check(context.Background(), nil); err != nil {
		t.Errorf("Check after unlock: %v", err)
	}
}

// blockingChecker holds Check open until release is closed.
type blockingChecker struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingChecker) Check(ctx context.Context, _ media.Source) (*models.CheckResult, error) {
	close(b.started)
	<-b.release
	return &models.CheckResult{RunID: "blocked"}, nil
}

func (b *blockingChecker) FilesInNote(context.Context, *models.Note, *models.NoteType) ([]string, bool, error) {
	return nil, false, nil
}

func (b *blockingChecker) ReferencedFiles(context.Context, *models.Note, *models.NoteType) ([]string, bool, error) {
	return nil, false, nil
}

func TestCheck_ConcurrentCallRefused(t *testing.T) {
	store := testutil.TestCollection(t)
	bc := &blockingChecker{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(store, bc, nil, WithLogger(testutil.QuietLogger()))

	done := make(chan error, 1)
	go func() {
		_, err := svc.Check(context.Background(), nil)
		done <- err
	}()
	<-bc.started

	if _, err := svc.Check(context.Background(), nil); !errors.Is(err, apperr.ErrLocked) {
		t.Errorf("err = %v, want ErrLocked", err)
	}
	close(bc.release)
	if err := <-done; err != nil {
		t.Errorf("first check: %v", err)
	}
}

func TestRender(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Render(context.Background(), "plain [$]x[/$]", f.basic.ID)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(res.HTML, "plain ") || strings.Contains(res.HTML, "[$]") {
		t.Errorf("html = %q", res.HTML)
	}
	if res.Failed {
		t.Error("fallback rendering is not a failure")
	}
}

func TestRender_UnknownNoteType(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Render(context.Background(), "x", 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateNote_UnknownNoteType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateNote(context.Background(), &models.Note{NoteTypeID: 999})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateAndGetNote(t *testing.T) {
	f := newFixture(t)
	n := f.addNote(t, "front", "back")
	if n.Tags == nil {
		t.Error("tags should default to an empty slice")
	}
	got, err := f.svc.GetNote(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Fields != n.Fields {
		t.Errorf("fields = %q, want %q", got.Fields, n.Fields)
	}
}

func TestFilesInNote(t *testing.T) {
	f := newFixture(t)
	n := f.addNote(t, `<img src="a.png"><img src="b.png">`, `<img src='a.png'>`)

	refs, err := f.svc.FilesInNote(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("FilesInNote: %v", err)
	}
	if !slices.Equal(refs, []string{"a.png", "b.png"}) {
		t.Errorf("refs = %v", refs)
	}
}

func TestFilesInNote_NoRefsIsEmptySlice(t *testing.T) {
	f := newFixture(t)
	n := f.addNote(t, "plain", "text")
	refs, err := f.svc.FilesInNote(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("FilesInNote: %v", err)
	}
	if refs == nil || len(refs) != 0 {
		t.Errorf("refs = %#v, want empty non-nil slice", refs)
	}
}

func TestAddNoteType_TrimsName(t *testing.T) {
	f := newFixture(t)
	nt, err := f.svc.AddNoteType(context.Background(), &models.NoteType{Name: "  Cloze  ", Kind: models.KindCloze})
	if err != nil {
		t.Fatalf("AddNoteType: %v", err)
	}
	if nt.Name != "Cloze" {
		t.Errorf("name = %q", nt.Name)
	}

	types, err := f.svc.NoteTypes(context.Background())
	if err != nil {
		t.Fatalf("NoteTypes: %v", err)
	}
	if len(types) != 2 {
		t.Errorf("types = %v, want 2", types)
	}
}

func TestLatexErrorNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids, err := f.svc.LatexErrorNotes(ctx)
	if err != nil {
		t.Fatalf("LatexErrorNotes: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("ids = %#v, want empty non-nil slice", ids)
	}

	f.addNote(t, "clean")
	tagged := &models.Note{NoteTypeID: f.basic.ID, Fields: "x", Tags: []string{"latexerror"}}
	if _, err := f.svc.CreateNote(ctx, tagged); err != nil {
		t.Fatal(err)
	}
	ids, err = f.svc.LatexErrorNotes(ctx)
	if err != nil {
		t.Fatalf("LatexErrorNotes: %v", err)
	}
	if !slices.Equal(ids, []int64{tagged.ID}) {
		t.Errorf("ids = %v, want [%d]", ids, tagged.ID)
	}
}

func TestFilesInNote_KeepsTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := &models.Note{NoteTypeID: f.basic.ID, Fields: `<img src="a.png">`, Tags: []string{models.LatexErrorTag}}
	if _, err := f.svc.CreateNote(ctx, n); err != nil {
		t.Fatal(err)
	}
	before, _ := f.svc.GetNote(ctx, n.ID)

	if _, err := f.svc.FilesInNote(ctx, n.ID); err != nil {
		t.Fatalf("FilesInNote: %v", err)
	}
	after, err := f.svc.GetNote(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !after.HasTag(models.LatexErrorTag) || !after.ModifiedAt.Equal(before.ModifiedAt) {
		t.Errorf("note changed by a read: %+v", after)
	}
}
