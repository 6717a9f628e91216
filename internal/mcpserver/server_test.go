package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/infobox/internal/index"
	"github.com/starford/infobox/internal/noteservice"
	"github.com/starford/infobox/internal/storage"
	"github.com/starford/infobox/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()
	srv, store, _ := testServerWithDB(t)
	return srv, store
}

func testServerWithDB(t *testing.T) (*Server, storage.Provider, *index.DB) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	return New(store, noteservice.NewService(store, db)), store, db
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// Find the handler via the MCPServer's tool list. We call the handler directly.
	// Since mcp-go doesn't expose a direct "call tool" test helper, we test
	// through the tool handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "get_infobox_contract":
		result, err = srv.getInfoboxContract(ctx, req)
	case "render_infobox":
		result, err = srv.renderInfobox(ctx, req)
	case "render_note":
		result, err = srv.renderNote(ctx, req)
	case "list_infoboxes":
		result, err = srv.listInfoboxes(ctx, req)
	case "upload_infobox_image":
		result, err = srv.uploadInfoboxImage(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "test.md",
		"content": "# Test\nHello",
	})
	text := resultText(r)
	if text != "created: test.md" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{
		"path": "test.md",
	})
	text = resultText(r)
	if text != "# Test\nHello" {
		t.Errorf("read result = %q", text)
	}
}

func TestListNotes(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("a.md", []byte("a"))
	_ = store.Write("b.md", []byte("b"))

	r := callTool(t, srv, "list_notes", map[string]interface{}{})
	text := resultText(r)
	if text == "" {
		t.Error("list returned empty")
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestGetBacklinks(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "a.md",
		"content": "links to [[b]]",
	})

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "b"})
	text := resultText(r)
	if text != "a.md" {
		t.Errorf("backlinks = %q, want a.md", text)
	}
}

func TestCreateNoteDuplicate(t *testing.T) {
	srv, _ := testServer(t)
	args := map[string]interface{}{"path": "dup.md", "content": "# Dup"}
	_ = callTool(t, srv, "create_note", args)
	r := callTool(t, srv, "create_note", args)
	if !r.IsError {
		t.Error("expected error for duplicate note")
	}
}

func TestGetInfoboxContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_infobox_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "Infobox Format Contract") {
		t.Error("contract text missing heading")
	}

	contents, err := srv.readInfoboxFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("resource contents = %d, want 1", len(contents))
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != InfoboxFormatURI {
		t.Errorf("resource = %+v", contents[0])
	}
}

func TestRenderInfobox(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "people/Ridley Scott.md",
		"content": "# Ridley Scott",
	})

	r := callTool(t, srv, "render_infobox", map[string]interface{}{
		"source": "director = \"[[Ridley Scott]]\"\n",
		"path":   "films/Alien.md",
	})
	if r.IsError {
		t.Fatalf("render_infobox error: %s", resultText(r))
	}
	var out noteservice.RenderedInfobox
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Title != "Alien" {
		t.Errorf("title = %q, want Alien", out.Title)
	}
	if len(out.Links) != 1 || out.Links[0].Target != "people/Ridley Scott.md" {
		t.Errorf("links = %+v", out.Links)
	}

	r = callTool(t, srv, "render_infobox", map[string]interface{}{"source": "director = "})
	if !r.IsError {
		t.Error("expected error for malformed source")
	}
}

func TestRenderNoteAndListInfoboxes(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "films/Alien.md",
		"content": "# Alien\n\n```infobox\ntitle = \"Alien\"\nyear = \"1979\"\n```\n",
	})

	r := callTool(t, srv, "render_note", map[string]interface{}{"path": "films/Alien.md"})
	if !strings.Contains(resultText(r), `<div class="infobox">`) {
		t.Errorf("render_note = %q", resultText(r))
	}

	r = callTool(t, srv, "render_note", map[string]interface{}{"path": "missing.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}

	r = callTool(t, srv, "list_infoboxes", map[string]interface{}{"query": "Alien"})
	if !strings.Contains(resultText(r), `"title": "Alien"`) {
		t.Errorf("list_infoboxes = %q", resultText(r))
	}
}

// 1x1 transparent PNG.
const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func TestUploadInfoboxImage(t *testing.T) {
	srv, store := testServer(t)

	r := callTool(t, srv, "upload_infobox_image", map[string]interface{}{
		"url":      "data:image/png;base64," + pixelPNG,
		"filename": "poster.png",
	})
	if r.IsError {
		t.Fatalf("upload error: %s", resultText(r))
	}
	var res uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.InfoboxImage != `image = "/attachments/poster.png"` {
		t.Errorf("infoboxImage = %q", res.InfoboxImage)
	}

	want, _ := base64.StdEncoding.DecodeString(pixelPNG)
	got, err := store.Read("attachments/poster.png")
	if err != nil {
		t.Fatalf("stored image: %v", err)
	}
	if string(got) != string(want) {
		t.Error("stored image content mismatch")
	}

	r = callTool(t, srv, "upload_infobox_image", map[string]interface{}{
		"url":      "data:image/png;base64," + pixelPNG,
		"filename": "poster.gif",
	})
	if !r.IsError {
		t.Error("expected magic byte mismatch to be rejected")
	}
}

func TestSearchNotes_InfoboxScope(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "anh.md",
		"content": "```infobox\ncomposer = \"John Williams\"\n```\n",
	})
	callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "essay.md",
		"content": "Williams wrote the score.",
	})

	text := resultText(callTool(t, srv, "search_notes", map[string]interface{}{
		"query": "Williams",
		"scope": "infobox",
	}))
	if !strings.Contains(text, "anh.md") || strings.Contains(text, "essay.md") {
		t.Errorf("infobox scope result = %s", text)
	}

	text = resultText(callTool(t, srv, "search_notes", map[string]interface{}{"query": "Williams"}))
	if !strings.Contains(text, "anh.md") || !strings.Contains(text, "essay.md") {
		t.Errorf("default scope result = %s", text)
	}
}

func TestUploadInfoboxImage_RefusesOverwrite(t *testing.T) {
	srv, store := testServer(t)
	args := map[string]interface{}{
		"url":      "data:image/png;base64," + pixelPNG,
		"filename": "poster.png",
	}
	if r := callTool(t, srv, "upload_infobox_image", args); r.IsError {
		t.Fatalf("first upload: %s", resultText(r))
	}
	r := callTool(t, srv, "upload_infobox_image", args)
	if !r.IsError || !strings.Contains(resultText(r), "already exists") {
		t.Errorf("second upload = %q", resultText(r))
	}
	if _, err := store.Read("attachments/poster.png"); err != nil {
		t.Errorf("first upload lost: %v", err)
	}
}

func TestRenderNote_ResolvesSeededLinks(t *testing.T) {
	srv, store, db := testServerWithDB(t)
	testutil.Seed(t, store, db, map[string]string{
		"people/Ridley Scott.md": "# Ridley Scott",
		"films/Alien.md":         "```infobox\ndirector = \"[[Ridley Scott]]\"\nwriter = \"[[Dan O'Bannon]]\"\n```\n",
	})

	text := resultText(callTool(t, srv, "render_note", map[string]interface{}{"path": "films/Alien.md"}))
	if !strings.Contains(text, `href="people/Ridley Scott.md"`) {
		t.Errorf("director link not resolved: %s", text)
	}
	if !strings.Contains(text, "is-unresolved") {
		t.Errorf("missing writer note not marked unresolved: %s", text)
	}
}
