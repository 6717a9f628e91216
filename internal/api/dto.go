package api

import (
	"time"

	"github.com/starford/infobox/internal/models"
	"github.com/starford/infobox/internal/noteservice"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Content string `json:"content" example:"# Hello\nWorld" validate:"required"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Updated\nContent" validate:"required"`
}

// MoveNoteRequest is the request body for renaming a note.
type MoveNoteRequest struct {
	From string `json:"from" example:"drafts/dune.md" validate:"required"`
	To   string `json:"to" example:"books/Dune.md" validate:"required"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Title   string `json:"title" example:"Hello" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// BacklinksResponse lists the notes linking to a note.
type BacklinksResponse struct {
	Path      string   `json:"path" example:"people/George Lucas.md" validate:"required"`
	Backlinks []string `json:"backlinks" validate:"required"`
}

// InfoboxSummary is one indexed infobox (aliased from the domain layer).
type InfoboxSummary = models.InfoboxSummary

// InfoboxListResponse wraps indexed infobox listings.
type InfoboxListResponse struct {
	Infoboxes []InfoboxSummary `json:"infoboxes" validate:"required"`
}

// RenderInfoboxRequest is the request body for rendering one infobox.
// Path is the note the block is rendered for; it drives relative link
// resolution and the fallback title.
type RenderInfoboxRequest struct {
	Source string `json:"source" example:"title = \"Star Wars\"" validate:"required"`
	Path   string `json:"path,omitempty" example:"films/Star Wars.md"`
}

// RenderedInfobox is the rendered infobox response (aliased from the domain layer).
type RenderedInfobox = noteservice.RenderedInfobox

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	Filename string `json:"filename" example:"image.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/attachments/image.png" validate:"required"`
}

// NoteDetailDTO mirrors NoteDetail with explicit types for swag.
type NoteDetailDTO = NoteDetail

// NoteListItemDTO mirrors NoteListItem for swag.
type NoteListItemDTO struct {
	Path      string    `json:"path" example:"notes/hello.md"`
	Title     string    `json:"title" example:"Hello"`
	Checksum  string    `json:"checksum" example:"abc123..."`
	Tags      []string  `json:"tags" example:"tag1,tag2"`
	UpdatedAt time.Time `json:"updated_at"`
}
