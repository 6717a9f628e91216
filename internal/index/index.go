package index

import (
	"github.com/starford/infobox/internal/linkpath"
	"github.com/starford/infobox/internal/models"
)

// NoteIndex is the index surface the note service works against.
type NoteIndex interface {
	IndexFile(path string, data []byte) error
	DeleteNote(path string) error
	ListNotes(limit, offset int, tag, sort string) ([]NoteRow, int, error)

	Search(query string, limit int) ([]SearchResult, error)
	SearchInfoboxes(query string, limit int) ([]SearchResult, error)

	Backlinks(target string) ([]string, error)
	StaleInfoboxes(path string) ([]string, error)
	WithStale(c Change) (Change, error)

	Infoboxes(path string) ([]models.InfoboxSummary, error)
	ListInfoboxes(query string, limit int) ([]models.InfoboxSummary, error)
	LinkSet() (*linkpath.Set, error)
}

var _ NoteIndex = (*DB)(nil)
