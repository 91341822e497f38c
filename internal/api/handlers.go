package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mediacheck/internal/models"
	"github.com/starford/mediacheck/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

func noteID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// Check handles POST /api/check.
//
//	@Summary		Run a media check
//	@Tags			check
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CheckRequest	false	"Optional snapshot of the media folder"
//	@Success		200		{object}	models.CheckResult
//	@Failure		400		{object}	errResponse
//	@Failure		423		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/check [post]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.Check(r.Context(), req.Files)
	if err != nil {
		writeServiceError(w, "check", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Render handles POST /api/render.
//
//	@Summary		Replace LaTeX markers with images
//	@Tags			render
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenderRequest	true	"HTML and note type"
//	@Success		200		{object}	noteservice.RenderResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render [post]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.Render(r.Context(), req.HTML, req.NoteTypeID)
	if err != nil {
		writeServiceError(w, "render", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	note := &models.Note{NoteTypeID: req.NoteTypeID, Tags: req.Tags}
	note.SetFieldList(req.Fields)
	created, err := h.svc.CreateNote(r.Context(), note)
	if err != nil {
		writeServiceError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// NoteMedia handles GET /api/notes/{id}/media.
//
//	@Summary		List the media a note references
//	@Description	Read-only for the note: tags are not updated. LaTeX images missing from the cache are built.
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	NoteMediaResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/media [get]
func (h *Handler) NoteMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	files, err := h.svc.FilesInNote(r.Context(), id)
	if err != nil {
		writeServiceError(w, "note media", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteMediaResponse{Files: files})
}

// AddNoteType handles POST /api/notetypes.
//
//	@Summary		Create or replace a note type
//	@Tags			notetypes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteTypeRequest	true	"Note type"
//	@Success		201		{object}	models.NoteType
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notetypes [post]
func (h *Handler) AddNoteType(w http.ResponseWriter, r *http.Request) {
	var req NoteTypeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	nt, err := h.svc.AddNoteType(r.Context(), req.NoteType())
	if err != nil {
		writeServiceError(w, "add notetype", err)
		return
	}
	slog.Debug("notetype saved", slog.Int64("id", nt.ID))
	writeJSON(w, http.StatusCreated, nt)
}

// NoteTypes handles GET /api/notetypes.
//
//	@Summary		List note types
//	@Tags			notetypes
//	@Produce		json
//	@Success		200	{array}	models.NoteType
//	@Security		BearerAuth
//	@Router			/notetypes [get]
func (h *Handler) NoteTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.NoteTypes(r.Context())
	if err != nil {
		writeServiceError(w, "list notetypes", err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}
