// Package noteservice coordinates vault storage, the index, and infobox
// rendering for the transports.
package noteservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/starford/infobox/internal/apperr"
	"github.com/starford/infobox/internal/checksum"
	"github.com/starford/infobox/internal/index"
	"github.com/starford/infobox/internal/infobox"
	"github.com/starford/infobox/internal/markdown"
	"github.com/starford/infobox/internal/models"
	"github.com/starford/infobox/internal/parser"
	"github.com/starford/infobox/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string                  `json:"path"`
	Title       string                  `json:"title"`
	Content     string                  `json:"content"`
	Checksum    string                  `json:"checksum"`
	Tags        []string                `json:"tags"`
	Frontmatter map[string]any          `json:"frontmatter,omitempty"`
	Backlinks   []string                `json:"backlinks"`
	Infoboxes   []models.InfoboxSummary `json:"infoboxes"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RenderedNote is a note converted to HTML with its infoboxes rendered.
type RenderedNote struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// RenderedInfobox is a single rendered infobox.
type RenderedInfobox struct {
	HTML  string                 `json:"html"`
	Title string                 `json:"title"`
	Links []infobox.ResolvedLink `json:"links"`
}

// Option configures a Service.
type Option func(*Service)

// WithRenderer sets the infobox renderer. The default renderer logs to
// slog.Default and records no metrics.
func WithRenderer(r *infobox.Renderer) Option {
	return func(s *Service) {
		if r != nil {
			s.renderer = r
		}
	}
}

// WithConverter sets the note converter. By default one is built around the
// service renderer.
func WithConverter(c *markdown.Converter) Option {
	return func(s *Service) {
		if c != nil {
			s.converter = c
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithChangeFunc sets a callback run after every note the service creates,
// updates, moves or deletes. The file watcher skips content the service has
// already indexed, so these changes are reported once.
func WithChangeFunc(fn index.ChangeFunc) Option {
	return func(s *Service) {
		s.onChange = fn
	}
}

// Service coordinates storage and index operations.
type Service struct {
	store     storage.Provider
	db        index.NoteIndex
	renderer  *infobox.Renderer
	converter *markdown.Converter
	logger    *slog.Logger
	onChange  index.ChangeFunc
}

// NewService creates a new note service.
func NewService(store storage.Provider, db index.NoteIndex, opts ...Option) *Service {
	s := &Service{store: store, db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = infobox.NewRenderer(infobox.WithLogger(s.logger))
	}
	if s.converter == nil {
		s.converter = markdown.NewConverter(markdown.NewExtension(s.renderer, markdown.WithLogger(s.logger)))
	}
	return s
}

// GetNote reads a note from storage, parses it, and enriches with backlinks.
func (s *Service) GetNote(ctx context.Context, path string) (*NoteDetail, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(ctx, path, data)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(ctx context.Context, path string, content []byte) (*NoteDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(path, content); err != nil {
		return nil, err
	}
	s.notify(index.ChangeCreated, path)
	return s.buildNoteDetail(ctx, path, content)
}

// UpdateNote writes updated content with optimistic concurrency.
func (s *Service) UpdateNote(ctx context.Context, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if !checksum.Matches(ifMatch, existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(path, content); err != nil {
		return nil, err
	}
	s.notify(index.ChangeUpdated, path)
	return s.buildNoteDetail(ctx, path, content)
}

// MoveNote renames a note and reindexes it under the new path. Links pointing
// at the old path are left as written and stop resolving.
func (s *Service) MoveNote(ctx context.Context, oldPath, newPath string) (*NoteDetail, error) {
	data, err := s.read(oldPath)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(newPath); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Move(oldPath, newPath); err != nil {
		return nil, err
	}
	// The file has moved; from here on a failure leaves the index behind
	// until the watcher or the next sync catches up.
	if err := s.reindexMoved(oldPath, newPath, data); err != nil {
		s.logger.Error("move: index out of date",
			slog.String("from", oldPath),
			slog.String("to", newPath),
			slog.String("error", err.Error()))
		return nil, err
	}
	s.notify(index.ChangeDeleted, oldPath)
	s.notify(index.ChangeCreated, newPath)
	return s.buildNoteDetail(ctx, newPath, data)
}

func (s *Service) reindexMoved(oldPath, newPath string, data []byte) error {
	if err := s.db.DeleteNote(oldPath); err != nil {
		return fmt.Errorf("noteservice: move: %w", err)
	}
	if err := s.IndexFile(newPath, data); err != nil {
		return fmt.Errorf("noteservice: move: %w", err)
	}
	return nil
}

// DeleteNote removes a note from storage and index.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeleteNote(path); err != nil {
		return err
	}
	s.notify(index.ChangeDeleted, path)
	return nil
}

func (s *Service) notify(kind, path string) {
	if s.onChange == nil {
		return
	}
	c, err := s.db.WithStale(index.Change{Kind: kind, Path: path})
	if err != nil {
		s.logger.Warn("stale infobox lookup failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	s.onChange(c)
}

// ListNotes returns paginated notes with optional tag filter.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag, sort string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// SearchInfoboxes searches infobox field text only.
func (s *Service) SearchInfoboxes(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.SearchInfoboxes(query, limit)
}

// Backlinks returns the notes that link to path under any of its
// index.LinkTargets forms.
func (s *Service) Backlinks(_ context.Context, path string) ([]string, error) {
	targets := index.LinkTargets(path)
	seen := make(map[string]struct{})
	var out []string
	for _, t := range targets {
		sources, err := s.db.Backlinks(t)
		if err != nil {
			return nil, err
		}
		for _, src := range sources {
			if src == path {
				continue
			}
			if _, ok := seen[src]; ok {
				continue
			}
			seen[src] = struct{}{}
			out = append(out, src)
		}
	}
	sort.Strings(out)
	return nonNilSlice(out), nil
}

// ListInfoboxes returns indexed infobox summaries matching query.
func (s *Service) ListInfoboxes(_ context.Context, query string, limit int) ([]models.InfoboxSummary, error) {
	boxes, err := s.db.ListInfoboxes(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(boxes), nil
}

// RenderNote converts a stored note to HTML, rendering its infobox blocks
// against the current index.
func (s *Service) RenderNote(_ context.Context, path string) (*RenderedNote, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	set, err := s.db.LinkSet()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.converter.Convert(&buf, []byte(res.Body), path, set); err != nil {
		return nil, fmt.Errorf("noteservice: render %s: %w", path, err)
	}
	return &RenderedNote{Path: path, Title: res.Title, HTML: buf.String()}, nil
}

// RenderInfobox renders one infobox source as if it appeared in the note at
// docPath. Malformed sources yield apperr.ErrInvalid.
func (s *Service) RenderInfobox(_ context.Context, source, docPath string) (*RenderedInfobox, error) {
	set, err := s.db.LinkSet()
	if err != nil {
		return nil, err
	}
	w, err := s.renderer.Render(source, infobox.Context{DocumentPath: docPath, Collection: set})
	if err != nil {
		if errors.Is(err, infobox.ErrParse) {
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
		}
		return nil, err
	}
	out, err := w.HTML()
	if err != nil {
		return nil, err
	}
	return &RenderedInfobox{HTML: out, Title: w.Title, Links: nonNilSlice(w.Links())}, nil
}

// IndexFile parses data and upserts it into the index.
// Exported so that the transports can reindex after writes.
func (s *Service) IndexFile(path string, data []byte) error {
	return s.db.IndexFile(path, data)
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func (s *Service) buildNoteDetail(ctx context.Context, path string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	bl, err := s.Backlinks(ctx, path)
	if err != nil {
		return nil, err
	}
	boxes, err := s.db.Infoboxes(path)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Path:        path,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Backlinks:   bl,
		Infoboxes:   nonNilSlice(boxes),
		UpdatedAt:   time.Now(),
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
