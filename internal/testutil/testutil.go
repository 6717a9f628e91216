// Package testutil provides shared test helpers for vaults, indexes, and
// seeded infobox notes.
package testutil

import (
	"os"
	"sort"
	"testing"

	"github.com/starford/infobox/internal/index"
	"github.com/starford/infobox/internal/storage"
)

// TestDB opens an index on a temporary SQLite file removed at cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	f, err := os.CreateTemp("", "infobox-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := index.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates an empty vault under t.TempDir.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// Seed writes notes (path to Markdown) into store and indexes them in path
// order, so infobox summaries and links are queryable straight away.
func Seed(t *testing.T, store storage.Provider, db index.NoteIndex, notes map[string]string) {
	t.Helper()
	paths := make([]string, 0, len(notes))
	for p := range notes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		data := []byte(notes[p])
		if err := store.Write(p, data); err != nil {
			t.Fatalf("seed %s: %v", p, err)
		}
		if err := db.IndexFile(p, data); err != nil {
			t.Fatalf("seed index %s: %v", p, err)
		}
	}
}
