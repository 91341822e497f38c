package latex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/mediacheck/internal/htmltext"
	"github.com/starford/mediacheck/internal/models"
)

// Default document wrapper used when a note type has no header or footer.
const (
	DefaultPre = "\\documentclass[12pt]{article}\n" +
		"\\special{papersize=3in,5in}\n" +
		"\\usepackage[utf8]{inputenc}\n" +
		"\\usepackage{amssymb,amsmath}\n" +
		"\\pagestyle{empty}\n" +
		"\\setlength{\\parindent}{0in}\n" +
		"\\begin{document}\n"
	DefaultPost = "\\end{document}"
)

// Commands that can read or write arbitrary files or loop forever.
var forbiddenCommands = []string{
	"\\write18", "\\readline", "\\input", "\\include", "\\catcode",
	"\\openout", "\\write", "\\loop", "\\def", "\\shipout",
}

const logTailLines = 20

// BuildError describes a failed image build.
type BuildError struct {
	Step   string // "forbidden", "latex", "dvipng", "dvisvgm", "save"
	Detail string
	Output string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("latex: %s: %s: %v", e.Step, e.Detail, e.Err)
	}
	return fmt.Sprintf("latex: %s: %s", e.Step, e.Detail)
}

func (e *BuildError) Unwrap() error { return e.Err }

// HTML returns the message shown in place of the image.
func (e *BuildError) HTML() string {
	if e.Step == "forbidden" {
		return fmt.Sprintf("<div>For security reasons, '%s' is not allowed on cards. "+
			"You can still use it by placing the command in a different package, "+
			"and importing that package in the LaTeX header instead.</div>", htmltext.Escape(e.Detail))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<div>Error executing %s.</div>", htmltext.Escape(e.Step))
	if e.Output != "" {
		fmt.Fprintf(&b, "<pre>%s</pre>", htmltext.Escape(tail(e.Output, logTailLines)))
	}
	return b.String()
}

// Writer receives built images.
type Writer interface {
	Write(name string, content []byte) error
}

// Option configures the builder.
type Option func(*Builder)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(b *Builder) {
		if exec != nil {
			b.exec = exec
		}
	}
}

// WithBinaries overrides the toolchain binaries. Empty values keep the defaults.
func WithBinaries(latex, dvipng, dvisvgm string) Option {
	return func(b *Builder) {
		if latex != "" {
			b.latexBin = latex
		}
		if dvipng != "" {
			b.dvipngBin = dvipng
		}
		if dvisvgm != "" {
			b.dvisvgmBin = dvisvgm
		}
	}
}

// WithTimeout bounds each toolchain step.
func WithTimeout(d time.Duration) Option {
	return func(b *Builder) {
		b.timeout = d
	}
}

// WithLogger sets the builder logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Builder compiles LaTeX source into PNG or SVG images with an external toolchain.
type Builder struct {
	out        Writer
	latexBin   string
	dvipngBin  string
	dvisvgmBin string
	timeout    time.Duration
	exec       Executor
	logger     *slog.Logger
}

// NewBuilder constructs a builder that stores images through out.
func NewBuilder(out Writer, opts ...Option) *Builder {
	b := &Builder{
		out:        out,
		latexBin:   "latex",
		dvipngBin:  "dvipng",
		dvisvgmBin: "dvisvgm",
		timeout:    time.Minute,
		exec:       commandExecutor{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build compiles latex and stores the image as fname.
func (b *Builder) Build(ctx context.Context, latex, fname string, nt *models.NoteType) error {
	lower := strings.ToLower(latex)
	for _, bad := range forbiddenCommands {
		if strings.Contains(lower, bad) {
			return &BuildError{Step: "forbidden", Detail: bad}
		}
	}

	dir, err := os.MkdirTemp("", "mediacheck-latex-*")
	if err != nil {
		return &BuildError{Step: "latex", Detail: "create temp dir", Err: err}
	}
	defer os.RemoveAll(dir)

	pre, post := DefaultPre, DefaultPost
	if nt != nil && nt.LatexPre != "" {
		pre = nt.LatexPre
	}
	if nt != nil && nt.LatexPost != "" {
		post = nt.LatexPost
	}
	doc := pre + "\n" + latex + "\n" + post
	if err := os.WriteFile(filepath.Join(dir, "tmp.tex"), []byte(doc), 0o644); err != nil {
		return &BuildError{Step: "latex", Detail: "write source", Err: err}
	}

	if out, err := b.run(ctx, dir, b.latexBin, "-interaction=nonstopmode", "tmp.tex"); err != nil {
		return &BuildError{Step: "latex", Detail: b.latexBin, Output: string(out), Err: err}
	}

	ext := nt.ImageExt()
	img := "tmp." + ext
	step, bin := "dvipng", b.dvipngBin
	args := []string{"-D", "200", "-T", "tight", "tmp.dvi", "-o", img}
	if ext == "svg" {
		step, bin = "dvisvgm", b.dvisvgmBin
		args = []string{"--no-fonts", "--exact", "-Z", "2", "tmp.dvi", "-o", img}
	}
	if out, err := b.run(ctx, dir, bin, args...); err != nil {
		return &BuildError{Step: step, Detail: bin, Output: string(out), Err: err}
	}

	data, err := os.ReadFile(filepath.Join(dir, img))
	if err != nil {
		return &BuildError{Step: step, Detail: "no image produced", Err: err}
	}
	if err := b.out.Write(fname, data); err != nil {
		return &BuildError{Step: "save", Detail: fname, Err: err}
	}
	b.logger.Debug("latex: built image", slog.String("file", fname))
	return nil
}

func (b *Builder) run(ctx context.Context, dir, bin string, args ...string) ([]byte, error) {
	stepCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	out, err := b.exec.Run(stepCtx, dir, bin, args)
	if err != nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("timed out after %s: %w", b.timeout, err)
	}
	return out, err
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
