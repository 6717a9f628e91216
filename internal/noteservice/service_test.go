package noteservice

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/infobox/internal/apperr"
	"github.com/starford/infobox/internal/index"
	"github.com/starford/infobox/internal/infobox"
	"github.com/starford/infobox/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	return NewService(store, db, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

const starWars = "---\ntitle: Star Wars\ntags: [film]\n---\n" +
	"```infobox\n" +
	"director = \"[[George Lucas]]\"\n" +
	"cast = [\"Mark Hamill\", \"Harrison Ford\"]\n" +
	"studio = \"[[Lucasfilm]]\"\n" +
	"```\n\nA space opera.\n"

func TestCreateAndGetNote(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	created, err := svc.CreateNote(ctx, "films/Star Wars.md", []byte(starWars))
	require.NoError(t, err)
	assert.Equal(t, "Star Wars", created.Title)
	require.Len(t, created.Infoboxes, 1)
	assert.Equal(t, 3, created.Infoboxes[0].FieldCount)

	_, err = svc.CreateNote(ctx, "films/Star Wars.md", []byte(starWars))
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	got, err := svc.GetNote(ctx, "films/Star Wars.md")
	require.NoError(t, err)
	assert.Equal(t, created.Checksum, got.Checksum)
	assert.Equal(t, []string{"film"}, got.Tags)
}

func TestGetNote_NotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetNote(context.Background(), "missing.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateNote_Conflict(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.CreateNote(ctx, "a.md", []byte("# A"))
	require.NoError(t, err)

	_, err = svc.UpdateNote(ctx, "a.md", []byte("# A2"), "stale")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	updated, err := svc.UpdateNote(ctx, "a.md", []byte("# A2"), "")
	require.NoError(t, err)
	assert.Equal(t, "A2", updated.Title)
}

func TestMoveNote(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.CreateNote(ctx, "drafts/alien.md", []byte("# Alien\n\n```infobox\ndirector = \"Ridley Scott\"\n```\n"))
	require.NoError(t, err)

	moved, err := svc.MoveNote(ctx, "drafts/alien.md", "films/Alien.md")
	require.NoError(t, err)
	assert.Equal(t, "films/Alien.md", moved.Path)
	require.Len(t, moved.Infoboxes, 1)
	assert.Equal(t, "Alien", moved.Infoboxes[0].Title)

	_, err = svc.GetNote(ctx, "drafts/alien.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	boxes, err := svc.ListInfoboxes(ctx, "drafts", 10)
	require.NoError(t, err)
	assert.Empty(t, boxes)

	_, err = svc.MoveNote(ctx, "drafts/alien.md", "x.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMoveNote_IndexFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	var logs strings.Builder
	svc := NewService(store, db, WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))

	_, err := svc.CreateNote(ctx, "a.md", []byte("# A"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = svc.MoveNote(ctx, "a.md", "b.md")
	require.Error(t, err)

	// The file moved even though the index could not follow.
	_, err = store.Read("b.md")
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "move: index out of date")
	assert.Contains(t, logs.String(), `"to":"b.md"`)
}

func TestDeleteNote(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.CreateNote(ctx, "gone.md", []byte("# Gone"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteNote(ctx, "gone.md"))
	assert.ErrorIs(t, svc.DeleteNote(ctx, "gone.md"), apperr.ErrNotFound)

	items, total, err := svc.ListNotes(ctx, 10, 0, "", "")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestBacklinks_MatchesWrittenForms(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.CreateNote(ctx, "people/George Lucas.md", []byte("# George Lucas"))
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, "films/Star Wars.md", []byte(starWars))
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, "films/THX 1138.md", []byte("See [[people/George Lucas]]."))
	require.NoError(t, err)

	bl, err := svc.Backlinks(ctx, "people/George Lucas.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"films/Star Wars.md", "films/THX 1138.md"}, bl)
}

func TestRenderNote(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.CreateNote(ctx, "people/George Lucas.md", []byte("# George Lucas"))
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, "films/Star Wars.md", []byte(starWars))
	require.NoError(t, err)

	out, err := svc.RenderNote(ctx, "films/Star Wars.md")
	require.NoError(t, err)
	assert.Equal(t, "Star Wars", out.Title)
	assert.Contains(t, out.HTML, `<div class="infobox">`)
	assert.Contains(t, out.HTML, `href="people/George Lucas.md"`)
	assert.Contains(t, out.HTML, "is-unresolved")
	assert.Contains(t, out.HTML, "<p>A space opera.</p>")
	assert.NotContains(t, out.HTML, "tags:")

	_, err = svc.RenderNote(ctx, "nope.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRenderInfobox(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.CreateNote(ctx, "people/George Lucas.md", []byte("# George Lucas"))
	require.NoError(t, err)

	out, err := svc.RenderInfobox(ctx, `{"director": "[[George Lucas]]", "site": {"link": "https://starwars.com", "content": "Official"}}`, "films/Star Wars.md")
	require.NoError(t, err)
	assert.Equal(t, "Star Wars", out.Title)
	require.Len(t, out.Links, 2)
	assert.Equal(t, infobox.LinkInternal, out.Links[0].Kind)
	assert.Equal(t, "people/George Lucas.md", out.Links[0].Target)
	assert.Equal(t, infobox.LinkExternal, out.Links[1].Kind)
	assert.Equal(t, "https://starwars.com", out.Links[1].Target)
	assert.Equal(t, "Official", out.Links[1].Label)
	assert.True(t, strings.HasPrefix(out.HTML, `<div class="infobox">`))

	_, err = svc.RenderInfobox(ctx, "title = ", "x.md")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestListInfoboxes(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.CreateNote(ctx, "films/Star Wars.md", []byte(starWars))
	require.NoError(t, err)

	boxes, err := svc.ListInfoboxes(ctx, "Star", 10)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, "Star Wars", boxes[0].Title)

	none, err := svc.ListInfoboxes(ctx, "Alien", 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestChangeFunc_ReportsWritesWithStaleInfoboxes(t *testing.T) {
	ctx := context.Background()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	var changes []index.Change
	svc := NewService(store, db,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithChangeFunc(func(c index.Change) { changes = append(changes, c) }))

	_, err := svc.CreateNote(ctx, "films/Star Wars.md", []byte(starWars))
	require.NoError(t, err)
	lucas, err := svc.CreateNote(ctx, "people/George Lucas.md", []byte("# George Lucas"))
	require.NoError(t, err)
	_, err = svc.UpdateNote(ctx, "people/George Lucas.md", []byte("# Lucas"), lucas.Checksum)
	require.NoError(t, err)
	_, err = svc.MoveNote(ctx, "people/George Lucas.md", "people/Lucas.md")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteNote(ctx, "people/Lucas.md"))

	want := []index.Change{
		{Kind: index.ChangeCreated, Path: "films/Star Wars.md"},
		{Kind: index.ChangeCreated, Path: "people/George Lucas.md", Stale: []string{"films/Star Wars.md"}},
		{Kind: index.ChangeUpdated, Path: "people/George Lucas.md"},
		{Kind: index.ChangeDeleted, Path: "people/George Lucas.md", Stale: []string{"films/Star Wars.md"}},
		{Kind: index.ChangeCreated, Path: "people/Lucas.md"},
		{Kind: index.ChangeDeleted, Path: "people/Lucas.md"},
	}
	assert.Equal(t, want, changes)
}

func TestSearchInfoboxes_SeededVault(t *testing.T) {
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	testutil.Seed(t, store, db, map[string]string{
		"films/Star Wars.md": starWars,
		"essays/Hamill.md":   "Mark Hamill on voice acting.",
	})
	svc := NewService(store, db, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	hits, err := svc.SearchInfoboxes(context.Background(), "Hamill", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "films/Star Wars.md", hits[0].Path)

	all, err := svc.Search(context.Background(), "Hamill", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
