package index

import (
	"log/slog"
	"sort"

	"github.com/starford/infobox/internal/checksum"
	"github.com/starford/infobox/internal/infobox"
	"github.com/starford/infobox/internal/models"
	"github.com/starford/infobox/internal/parser"
	"github.com/starford/infobox/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	_, err := syncChanges(db, store, logger)
	return err
}

// syncChanges is Sync that also reports what it changed, in path order.
func syncChanges(db *DB, store storage.Provider, logger *slog.Logger) ([]Change, error) {
	metas, err := store.List("")
	if err != nil {
		return nil, err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return nil, err
	}

	var changes []Change
	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		known, indexed := checksums[m.Path]
		if known == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := db.IndexFile(m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: indexed", slog.String("path", m.Path))
		kind := ChangeCreated
		if indexed {
			kind = ChangeUpdated
		}
		changes = append(changes, Change{Kind: kind, Path: m.Path})
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteNote(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("path", p))
		changes = append(changes, Change{Kind: ChangeDeleted, Path: p})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// IndexFile parses data and upserts it as the note at path.
func (db *DB) IndexFile(path string, data []byte) error {
	res, err := parser.Parse(data, parser.WithInfoboxLanguage(db.infoboxLang))
	if err != nil {
		return err
	}
	cs := checksum.Sum(data)

	row := NoteRow{
		Path:     path,
		Title:    res.Title,
		Checksum: cs,
		Tags:     res.Tags,
	}
	return db.UpsertNote(row, res.Body, res.Links, summarize(path, res.Infoboxes))
}

// summarize parses each infobox block far enough to record its title and
// field count. Blocks that fail to parse keep their error message.
func summarize(path string, blocks []parser.Block) []models.InfoboxSummary {
	out := make([]models.InfoboxSummary, 0, len(blocks))
	for i, b := range blocks {
		s := models.InfoboxSummary{Path: path, Ordinal: i, Line: b.Line}
		doc, err := infobox.ParseDocument(b.Source)
		if err != nil {
			s.Error = err.Error()
			out = append(out, s)
			continue
		}
		s.FieldCount = len(doc.Fields)
		s.Text = doc.PlainText()
		switch {
		case doc.HasTitle:
			s.Title = doc.Title
		case len(doc.Fields) > 0:
			s.Title = infobox.FileStem(path)
		}
		out = append(out, s)
	}
	return out
}
