package api

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mediacheck/internal/models"
)

// CheckRequest is the optional request body for POST /api/check. A non-null
// Files list checks against that list instead of the media folder.
type CheckRequest struct {
	Files []string `json:"files" example:"a.png,b.mp3"`
}

// Validate validates the request.
func (r CheckRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Files, validation.Each(validation.Required)),
	)
}

// RenderRequest is the request body for POST /api/render.
type RenderRequest struct {
	HTML       string `json:"html" example:"[$]x^2[/$]" validate:"required"`
	NoteTypeID int64  `json:"notetype_id" example:"1" validate:"required"`
}

// Validate validates the request.
func (r RenderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.HTML, validation.Required),
		validation.Field(&r.NoteTypeID, validation.Required, validation.Min(int64(1))),
	)
}

// CreateNoteRequest is the request body for POST /api/notes.
type CreateNoteRequest struct {
	NoteTypeID int64    `json:"notetype_id" example:"1" validate:"required"`
	Fields     []string `json:"fields" example:"front,back" validate:"required"`
	Tags       []string `json:"tags" example:"geometry"`
}

// Validate validates the request.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NoteTypeID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Fields, validation.Required),
		validation.Field(&r.Tags, validation.Each(validation.By(noSpaces))),
	)
}

// NoteTypeRequest is the request body for POST /api/notetypes.
type NoteTypeRequest struct {
	ID        int64  `json:"id,omitempty" example:"1"`
	Name      string `json:"name" example:"Basic" validate:"required"`
	Kind      string `json:"kind" example:"standard" enums:"standard,cloze"`
	LatexSVG  bool   `json:"latex_svg"`
	LatexPre  string `json:"latex_pre,omitempty"`
	LatexPost string `json:"latex_post,omitempty"`
}

// Validate validates the request.
func (r NoteTypeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Kind, validation.In(string(models.KindStandard), string(models.KindCloze))),
	)
}

// NoteType converts the request to the domain type.
func (r NoteTypeRequest) NoteType() *models.NoteType {
	return &models.NoteType{
		ID:        r.ID,
		Name:      r.Name,
		Kind:      models.Kind(r.Kind),
		LatexSVG:  r.LatexSVG,
		LatexPre:  r.LatexPre,
		LatexPost: r.LatexPost,
	}
}

// NoteMediaResponse lists the media referenced by a note.
type NoteMediaResponse struct {
	Files []string `json:"files" validate:"required"`
}

func noSpaces(value any) error {
	s, _ := value.(string)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return validation.NewError("validation_tag", "tags must be non-empty and contain no whitespace")
	}
	return nil
}
