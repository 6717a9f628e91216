//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

// Without FTS5 the notes.body and infoboxes.text columns are searched with
// LIKE, so there is nothing extra to maintain.

func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _, _, _, _ string, _ []string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search matches query as a substring of titles, bodies, infobox text and
// tags. Notes whose title matches come first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT n.path, n.title,
		       CASE WHEN n.body LIKE ?1 OR ib.text IS NULL THEN substr(n.body, 1, 200)
		            ELSE substr(ib.text, 1, 200) END
		FROM notes n
		LEFT JOIN (
			SELECT path, group_concat(text, char(10)) AS text
			FROM infoboxes GROUP BY path
		) ib ON ib.path = n.path
		WHERE n.title LIKE ?1 OR n.body LIKE ?1 OR n.tags LIKE ?1 OR ib.text LIKE ?1
		ORDER BY n.title LIKE ?1 DESC, n.path
		LIMIT ?2
	`, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}

// SearchInfoboxes matches query as a substring of infobox field text only.
func (db *DB) SearchInfoboxes(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT n.path, n.title, substr(i.text, 1, 200)
		FROM infoboxes i
		JOIN notes n ON n.path = i.path
		WHERE i.text LIKE ?
		GROUP BY n.path
		ORDER BY n.path
		LIMIT ?
	`, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("index: search infoboxes: %w", err)
	}
	return scanResults(rows)
}
