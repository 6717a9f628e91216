package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/infobox/internal/noteservice"
	"github.com/starford/infobox/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// attachments backs the upload endpoint.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler, attachments storage.Attachments) chi.Router {
	h := NewHandler(svc)
	ah := NewAttachmentHandler(attachments)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)
	r.Post("/notes-move", h.MoveNote)
	r.Get("/notes-backlinks/*", h.Backlinks)

	// Search.
	r.Get("/search", h.Search)

	// Infoboxes.
	r.Get("/infoboxes", h.ListInfoboxes)
	r.Post("/infobox/render", h.RenderInfobox)
	r.Get("/render/*", h.RenderNote)

	// Attachments upload (auth-protected).
	r.Post("/attachments", ah.Upload)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
