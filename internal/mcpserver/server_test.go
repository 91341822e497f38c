package mcpserver

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mediacheck/internal/collection"
	"github.com/starford/mediacheck/internal/latex"
	"github.com/starford/mediacheck/internal/media"
	"github.com/starford/mediacheck/internal/models"
	"github.com/starford/mediacheck/internal/noteservice"
	"github.com/starford/mediacheck/internal/testutil"
)

type fixture struct {
	srv   *Server
	dir   string
	basic *models.NoteType
	note  *models.Note
	store *collection.DB
}

func testServer(t *testing.T) *fixture {
	t.Helper()
	dir, folder := testutil.TestMediaFolder(t)
	store := testutil.TestCollection(t)
	ctx := context.Background()

	basic := &models.NoteType{Name: "Basic"}
	if err := store.AddNoteType(ctx, basic); err != nil {
		t.Fatal(err)
	}
	note := &models.Note{NoteTypeID: basic.ID, Fields: `<img src="a.png">` + models.FieldSeparator + "[sound:b.mp3]"}
	if err := store.AddNote(ctx, note); err != nil {
		t.Fatal(err)
	}

	renderer := latex.NewRenderer(folder, nil)
	checker, err := media.NewChecker(store, folder, renderer, media.WithLogger(testutil.QuietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	svc := noteservice.NewService(store, checker, renderer)
	return &fixture{srv: New(svc, "test"), dir: dir, basic: basic, note: note, store: store}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "check_media":
		result, err = srv.checkMedia(ctx, req)
	case "render_latex":
		result, err = srv.renderLatex(ctx, req)
	case "get_note":
		result, err = srv.getNote(ctx, req)
	case "note_media":
		result, err = srv.noteMedia(ctx, req)
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

func TestCheckMedia_Live(t *testing.T) {
	f := testServer(t)
	testutil.WriteFiles(t, f.dir, "a.png", "extra.jpg")

	r := callTool(t, f.srv, "check_media", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var res models.CheckResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.Missing, []string{"b.mp3"}) || !slices.Equal(res.Unused, []string{"extra.jpg"}) {
		t.Errorf("result = %+v", res)
	}
}

func TestCheckMedia_Snapshot(t *testing.T) {
	f := testServer(t)
	r := callTool(t, f.srv, "check_media", map[string]interface{}{
		"files": []interface{}{"a.png", "b.mp3"},
	})
	var res models.CheckResult
	_ = json.Unmarshal([]byte(resultText(r)), &res)
	if len(res.Missing) != 0 || len(res.Unused) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestCheckMedia_ListsErrorNotes(t *testing.T) {
	f := testServer(t)
	tagged := &models.Note{NoteTypeID: f.basic.ID, Fields: "x", Tags: []string{models.LatexErrorTag}}
	if err := f.store.AddNote(context.Background(), tagged); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, f.srv, "check_media", map[string]interface{}{"files": []interface{}{"a.png", "b.mp3"}})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var res struct {
		Missing      []string `json:"missing"`
		ErrorNoteIDs []int64  `json:"error_note_ids"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.ErrorNoteIDs, []int64{tagged.ID}) {
		t.Errorf("error_note_ids = %v, want [%d]", res.ErrorNoteIDs, tagged.ID)
	}
	if res.Missing == nil {
		t.Error("check fields missing from the flattened result")
	}
}

func TestRenderLatex(t *testing.T) {
	f := testServer(t)
	r := callTool(t, f.srv, "render_latex", map[string]interface{}{
		"html":        "[$]x[/$]",
		"notetype_id": float64(f.basic.ID),
	})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `[latex]$x$[/latex]`) {
		t.Errorf("render = %s", resultText(r))
	}

	r = callTool(t, f.srv, "render_latex", map[string]interface{}{"html": "x", "notetype_id": float64(404)})
	if !r.IsError || resultText(r) != "not found" {
		t.Errorf("unknown notetype: %v %q", r.IsError, resultText(r))
	}
	r = callTool(t, f.srv, "render_latex", map[string]interface{}{"notetype_id": float64(1)})
	if !r.IsError {
		t.Error("expected error without html")
	}
}

func TestGetNote(t *testing.T) {
	f := testServer(t)
	r := callTool(t, f.srv, "get_note", map[string]interface{}{"id": float64(f.note.ID)})
	if r.IsError || !strings.Contains(resultText(r), "sound:b.mp3") {
		t.Errorf("get_note = %q", resultText(r))
	}
	r = callTool(t, f.srv, "get_note", map[string]interface{}{"id": float64(9999)})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestNoteMedia(t *testing.T) {
	f := testServer(t)
	r := callTool(t, f.srv, "note_media", map[string]interface{}{"id": float64(f.note.ID)})
	if resultText(r) != "a.png\nb.mp3" {
		t.Errorf("note_media = %q", resultText(r))
	}
}

func TestConventionsResource(t *testing.T) {
	f := testServer(t)
	contents, err := f.srv.readConventions(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("contents = %v, err = %v", contents, err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != conventionsURI || !strings.Contains(tc.Text, "NFC") {
		t.Errorf("resource = %+v", contents[0])
	}
}
