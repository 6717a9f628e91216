package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/infobox/internal/infobox"
	"github.com/starford/infobox/internal/linkpath"
	"github.com/starford/infobox/internal/models"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertNote inserts or replaces a note, its FTS entry, links, and infobox
// summaries within a transaction.
func (db *DB) UpsertNote(n NoteRow, body string, links []string, boxes []models.InfoboxSummary) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(n.Tags)
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO notes (path, title, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, string(tagsJSON), body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.Path, n.Title, body, infoboxText(boxes), n.Tags); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, 'inline')`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(n.Path, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	if _, err := tx.Exec(`DELETE FROM infoboxes WHERE path = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear infoboxes: %w", err)
	}
	if len(boxes) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO infoboxes (path, ordinal, line, title, field_count, error, text)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare infobox insert: %w", err)
		}
		defer stmt.Close()
		for _, b := range boxes {
			if _, err := stmt.Exec(n.Path, b.Ordinal, b.Line, b.Title, b.FieldCount, b.Error, b.Text); err != nil {
				return fmt.Errorf("index: insert infobox: %w", err)
			}
		}
	}

	return tx.Commit()
}

func infoboxText(boxes []models.InfoboxSummary) string {
	parts := make([]string, 0, len(boxes))
	for _, b := range boxes {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// DeleteNote removes a note, its FTS entry, outgoing links, and infoboxes.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM infoboxes WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// AllPaths returns every indexed note path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// LinkSet returns an immutable snapshot of indexed note paths for resolving
// wikilinks.
func (db *DB) LinkSet() (*linkpath.Set, error) {
	paths, err := db.AllPaths()
	if err != nil {
		return nil, err
	}
	list := make([]string, 0, len(paths))
	for p := range paths {
		list = append(list, p)
	}
	return linkpath.NewSet(list), nil
}

var sortColumns = map[string]string{
	"":           "updated_at DESC, path ASC",
	"updated_at": "updated_at DESC, path ASC",
	"title":      "title ASC, path ASC",
	"path":       "path ASC",
}

// ListNotes returns a page of notes, optionally filtered by tag, and the
// total number of matching notes. Unknown sort keys fall back to updated_at.
func (db *DB) ListNotes(limit, offset int, tag, sort string) ([]NoteRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	order, ok := sortColumns[sort]
	if !ok {
		order = sortColumns[""]
	}

	where := ""
	var args []any
	if tag != "" {
		tagJSON, _ := json.Marshal(tag)
		where = `WHERE tags LIKE ?`
		args = append(args, "%"+string(tagJSON)+"%")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT path, title, checksum, tags, updated_at
		FROM notes `+where+`
		ORDER BY `+order+`
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var r NoteRow
		var tags string
		if err := rows.Scan(&r.Path, &r.Title, &r.Checksum, &tags, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(tags), &r.Tags)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Backlinks returns all note paths that link to the given target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Infoboxes returns the infobox summaries of one note in block order.
func (db *DB) Infoboxes(path string) ([]models.InfoboxSummary, error) {
	rows, err := db.conn.Query(`
		SELECT path, ordinal, line, title, field_count, error, text
		FROM infoboxes WHERE path = ? ORDER BY ordinal`, path)
	if err != nil {
		return nil, fmt.Errorf("index: infoboxes: %w", err)
	}
	return scanInfoboxes(rows)
}

// ListInfoboxes returns infobox summaries whose title or note path contains
// query (all of them when query is empty).
func (db *DB) ListInfoboxes(query string, limit int) ([]models.InfoboxSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT path, ordinal, line, title, field_count, error, text
		FROM infoboxes
		WHERE title LIKE ? OR path LIKE ?
		ORDER BY path, ordinal
		LIMIT ?`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: list infoboxes: %w", err)
	}
	return scanInfoboxes(rows)
}

func scanInfoboxes(rows *sql.Rows) ([]models.InfoboxSummary, error) {
	defer rows.Close()
	var out []models.InfoboxSummary
	for rows.Next() {
		var b models.InfoboxSummary
		if err := rows.Scan(&b.Path, &b.Ordinal, &b.Line, &b.Title, &b.FieldCount, &b.Error, &b.Text); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// StaleInfoboxes returns the notes carrying at least one infobox that link to
// path, written as the full path, the path without extension, or the bare
// file stem. Their rendered links change when path appears or disappears.
func (db *DB) StaleInfoboxes(path string) ([]string, error) {
	targets := LinkTargets(path)
	marks := strings.TrimSuffix(strings.Repeat("?,", len(targets)), ",")
	args := make([]any, 0, len(targets)+1)
	for _, t := range targets {
		args = append(args, t)
	}
	args = append(args, path)

	rows, err := db.conn.Query(`
		SELECT DISTINCT l.source
		FROM links l
		JOIN infoboxes i ON i.path = l.source
		WHERE l.target IN (`+marks+`) AND l.source != ?
		ORDER BY l.source`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: stale infoboxes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LinkTargets lists the forms a wikilink to path may be indexed under.
// Wikilinks are stored as written, so a note is reachable by its full path,
// the path without extension, and the bare file stem.
func LinkTargets(path string) []string {
	out := []string{path}
	if trimmed := strings.TrimSuffix(path, ".md"); trimmed != path {
		out = append(out, trimmed)
	}
	if stem := infobox.FileStem(path); stem != "" && stem != out[len(out)-1] {
		out = append(out, stem)
	}
	return out
}
