// Package latex turns LaTeX markers in note HTML into cached images.
package latex

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/mediacheck/internal/checksum"
	"github.com/starford/mediacheck/internal/htmltext"
	"github.com/starford/mediacheck/internal/models"
)

// The three marker syntaxes, applied in this order.
var (
	standardRe   = regexp.MustCompile(`(?si)\[latex\](.+?)\[/latex\]`)
	expressionRe = regexp.MustCompile(`(?si)\[\$\](.+?)\[/\$\]`)
	mathRe       = regexp.MustCompile(`(?si)\[\$\$\](.+?)\[/\$\$\]`)
)

// Folder answers whether a cached image already exists.
type Folder interface {
	Exists(name string) bool
}

// ImageBuilder compiles LaTeX source into an image named fname.
type ImageBuilder interface {
	Build(ctx context.Context, latex, fname string, nt *models.NoteType) error
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithBuildDisabled makes cache misses render as literal [latex] text.
func WithBuildDisabled() RendererOption {
	return func(r *Renderer) {
		r.build = false
	}
}

// WithRendererLogger sets the renderer logger.
func WithRendererLogger(l *slog.Logger) RendererOption {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// Renderer substitutes LaTeX markers with image tags.
type Renderer struct {
	folder  Folder
	builder ImageBuilder
	build   bool
	logger  *slog.Logger
}

// NewRenderer creates a renderer that looks up images in folder and builds
// missing ones with builder.
func NewRenderer(folder Folder, builder ImageBuilder, opts ...RendererOption) *Renderer {
	r := &Renderer{
		folder:  folder,
		builder: builder,
		build:   builder != nil,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render replaces every LaTeX marker in html and reports whether any
// image failed to build.
func (r *Renderer) Render(ctx context.Context, html string, nt *models.NoteType) (string, bool) {
	failed := false
	for _, m := range standardRe.FindAllStringSubmatch(html, -1) {
		link, err := r.imgLink(ctx, m[1], nt)
		html = strings.Replace(html, m[0], link, 1)
		failed = failed || err
	}
	for _, m := range expressionRe.FindAllStringSubmatch(html, -1) {
		link, err := r.imgLink(ctx, "$"+m[1]+"$", nt)
		html = strings.Replace(html, m[0], link, 1)
		failed = failed || err
	}
	for _, m := range mathRe.FindAllStringSubmatch(html, -1) {
		link, err := r.imgLink(ctx, `\begin{displaymath}`+m[1]+`\end{displaymath}`, nt)
		html = strings.Replace(html, m[0], link, 1)
		failed = failed || err
	}
	return html, failed
}

// ImageName returns the cache file name for the LaTeX source found between markers.
func ImageName(latex string, nt *models.NoteType) string {
	return cacheName(htmltext.LatexSource(latex), nt)
}

func cacheName(txt string, nt *models.NoteType) string {
	return "latex-" + checksum.Short([]byte(txt)) + "." + nt.ImageExt()
}

func (r *Renderer) imgLink(ctx context.Context, latex string, nt *models.NoteType) (string, bool) {
	txt := htmltext.LatexSource(latex)
	fname := cacheName(txt, nt)
	link := `<img class=latex src="` + fname + `">`

	if r.folder.Exists(fname) {
		return link, false
	}
	if !r.build {
		return "[latex]" + htmltext.Escape(latex) + "[/latex]", false
	}

	if err := r.builder.Build(ctx, txt, fname, nt); err != nil {
		r.logger.Debug("latex: build failed", slog.String("file", fname), slog.String("error", err.Error()))
		var be *BuildError
		if errors.As(err, &be) {
			return be.HTML(), true
		}
		return "<div>" + htmltext.Escape(err.Error()) + "</div>", true
	}
	return link, false
}
