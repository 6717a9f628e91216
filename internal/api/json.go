package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/starford/infobox/internal/apperr"
)

// Request body limits.
const (
	maxNoteBody    = 10 << 20
	maxInfoboxBody = 1 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decodeJSON reads a size-limited JSON body into v. On failure it writes the
// 400 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// statusFor maps service sentinels onto HTTP statuses. The bool is false for
// unexpected errors.
func statusFor(err error) (int, string, bool) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not found", true
	case errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusConflict, "already exists", true
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "checksum mismatch", true
	case errors.Is(err, apperr.ErrInvalid):
		// Parse errors carry the line and column the author needs.
		return http.StatusUnprocessableEntity, err.Error(), true
	default:
		return http.StatusInternalServerError, "internal error", false
	}
}

// writeServiceError writes the response for a failed service call and logs
// the errors that map to 500.
func writeServiceError(w http.ResponseWriter, op string, err error, attrs ...any) {
	status, msg, known := statusFor(err)
	if !known {
		slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
	}
	writeJSON(w, status, errorBody(msg))
}
