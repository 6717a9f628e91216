package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/infobox/internal/apperr"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		known  bool
	}{
		{fmt.Errorf("read: %w", apperr.ErrNotFound), http.StatusNotFound, true},
		{apperr.ErrAlreadyExists, http.StatusConflict, true},
		{apperr.ErrConflict, http.StatusConflict, true},
		{fmt.Errorf("%w: toml: line 1", apperr.ErrInvalid), http.StatusUnprocessableEntity, true},
		{errors.New("disk on fire"), http.StatusInternalServerError, false},
	}
	for _, c := range cases {
		status, _, known := statusFor(c.err)
		if status != c.status || known != c.known {
			t.Errorf("statusFor(%v) = %d,%v want %d,%v", c.err, status, known, c.status, c.known)
		}
	}
}

func TestStatusFor_InvalidKeepsParseDetail(t *testing.T) {
	_, msg, _ := statusFor(fmt.Errorf("%w: toml: bare keys cannot contain '!'", apperr.ErrInvalid))
	if !strings.Contains(msg, "bare keys") {
		t.Errorf("message lost parse detail: %q", msg)
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	body, _ := json.Marshal(RenderInfoboxRequest{Source: strings.Repeat("a", 64)})
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	w := httptest.NewRecorder()

	var out RenderInfoboxRequest
	if decodeJSON(w, req, 16, &out) {
		t.Fatal("decode should fail past the limit")
	}
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestDecodeJSON_Malformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	w := httptest.NewRecorder()
	var out MoveNoteRequest
	if decodeJSON(w, req, maxInfoboxBody, &out) {
		t.Fatal("decode should fail")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
