package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/infobox/internal/storage"
)

const maxUploadBytes = 50 << 20 // 50 MB

// AttachmentHandler serves and accepts the image files infobox image keys
// point at.
type AttachmentHandler struct {
	store storage.Attachments
}

// NewAttachmentHandler creates a handler backed by store.
func NewAttachmentHandler(store storage.Attachments) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

// ServeFile handles GET /attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	f, err := h.store.OpenAttachment(name)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		http.Error(w, "invalid filename", http.StatusBadRequest)
		return
	case errors.Is(err, os.ErrNotExist):
		http.NotFound(w, r)
		return
	case err != nil:
		slog.Error("attachment open failed", slog.String("name", name), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// Upload handles POST /api/attachments (multipart/form-data, field "file").
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	att, err := h.store.SaveAttachment(header.Filename, file)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid filename: "+header.Filename))
		return
	case errors.Is(err, storage.ErrNotImage):
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody("only image attachments are accepted"))
		return
	case errors.Is(err, os.ErrExist):
		writeJSON(w, http.StatusConflict, errorBody("attachment already exists: "+header.Filename))
		return
	case err != nil:
		writeServiceError(w, "upload attachment", err, slog.String("name", header.Filename))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"filename":      att.Name,
		"size":          att.Size,
		"url":           att.URL,
		"infobox_image": "image = " + strconv.Quote(att.URL),
	})
}
