package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mediacheck/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Post("/check", h.Check)
	r.Post("/render", h.Render)

	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Get("/notes/{id}/media", h.NoteMedia)

	r.Get("/notetypes", h.NoteTypes)
	r.Post("/notetypes", h.AddNoteType)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

// NewServer builds the full HTTP handler: health probes, the API under
// /api and media files under /media.
func NewServer(api http.Handler, mediaRoot string, mw ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(mw...)
	r.Get("/health/live", health)
	r.Get("/health/ready", health)
	r.Mount("/api", api)
	r.Get("/media/{filename}", NewMediaHandler(mediaRoot).ServeFile)
	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
