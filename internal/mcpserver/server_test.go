package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/raido/internal/backpack"
	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/projectstore"
	"github.com/starford/raido/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	blobs, cat := testutil.TestStores(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	projects := projectstore.NewService(blobs, cat, nil, log)
	packs := backpack.NewService(blobs, cat, log)

	return New(projects, packs)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we call
	// the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_projects":
		result, err = srv.listProjects(ctx, req)
	case "get_project":
		result, err = srv.getProject(ctx, req)
	case "read_snapshot":
		result, err = srv.readSnapshot(ctx, req)
	case "save_project":
		result, err = srv.saveProject(ctx, req)
	case "upload_asset":
		result, err = srv.uploadAsset(ctx, req)
	case "list_backpack":
		result, err = srv.listBackpack(ctx, req)
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

func TestSaveAndReadSnapshot(t *testing.T) {
	srv := testServer(t)

	snapshot := `{"title":"Bouncing cat","targets":{}}`
	r := callTool(t, srv, "save_project", map[string]interface{}{
		"snapshot": snapshot,
		"title":    "Bouncing cat",
	})
	if r.IsError {
		t.Fatalf("save failed: %s", resultText(r))
	}
	var res struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.ID == "" {
		t.Fatal("save returned no project id")
	}

	r = callTool(t, srv, "read_snapshot", map[string]interface{}{"id": res.ID})
	if got := resultText(r); got != snapshot {
		t.Errorf("snapshot = %q, want %q", got, snapshot)
	}
}

func TestSaveRejectsInvalidJSON(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "save_project", map[string]interface{}{
		"snapshot": "{not json",
	})
	if !r.IsError {
		t.Error("expected error for invalid snapshot")
	}
}

func TestListProjects(t *testing.T) {
	srv := testServer(t)

	for _, title := range []string{"One", "Two"} {
		callTool(t, srv, "save_project", map[string]interface{}{
			"snapshot": `{"title":"` + title + `"}`,
			"title":    title,
		})
	}

	r := callTool(t, srv, "list_projects", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "One") || !strings.Contains(text, "Two") {
		t.Errorf("list missing projects: %s", text)
	}
}

func TestGetProjectMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_project", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing project")
	}
}

func TestUploadAssetDataURI(t *testing.T) {
	srv := testServer(t)

	body := []byte("<svg xmlns='http://www.w3.org/2000/svg'/>")
	r := callTool(t, srv, "upload_asset", map[string]interface{}{
		"url":        backpack.EncodeDataURL("image/svg+xml", body),
		"asset_type": "costume",
	})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}

	var res uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.AssetID != checksum.MD5(body) {
		t.Errorf("asset id = %q, want content md5", res.AssetID)
	}
	if res.MD5Ext != res.AssetID+".svg" {
		t.Errorf("md5ext = %q", res.MD5Ext)
	}
}

func TestUploadAssetUnsupportedMime(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "upload_asset", map[string]interface{}{
		"url":        "data:application/x-server;base64,AAAA",
		"asset_type": "costume",
	})
	if !r.IsError {
		t.Error("expected error for unsupported MIME type")
	}
}
