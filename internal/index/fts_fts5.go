//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// colInfobox is the position of the infobox column in files_fts.
const colInfobox = 3

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			infobox,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, title, body, infobox string, tags []string) error {
	if _, err := tx.Exec(`DELETE FROM files_fts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	_, err := tx.Exec(`INSERT INTO files_fts (path, title, body, infobox, tags) VALUES (?, ?, ?, ?, ?)`,
		path, title, body, infobox, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM files_fts WHERE path = ?`, path)
}

// Search runs an FTS5 query over titles, bodies, infobox text and tags.
// Title and infobox hits rank above body hits; the snippet comes from
// whichever column matched best.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	return db.ftsQuery(-1, query, limit)
}

// SearchInfoboxes matches query against infobox field text only.
func (db *DB) SearchInfoboxes(query string, limit int) ([]SearchResult, error) {
	return db.ftsQuery(colInfobox, "infobox : ("+query+")", limit)
}

// ftsQuery ranks with bm25 weighting title 4, body 1, infobox 2, tags 1.
func (db *DB) ftsQuery(snippetCol int, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(fmt.Sprintf(`
		SELECT path,
		       title,
		       snippet(files_fts, %d, '<b>', '</b>', '...', 64)
		FROM files_fts
		WHERE files_fts MATCH ?
		ORDER BY bm25(files_fts, 0, 4.0, 1.0, 2.0, 1.0)
		LIMIT ?
	`, snippetCol), query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
