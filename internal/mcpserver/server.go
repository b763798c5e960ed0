// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Raido tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/backpack"
	"github.com/starford/raido/internal/projectstore"
	"github.com/starford/raido/internal/saver"
)

// defaultOwner matches the HTTP API's fallback identity for single-user setups.
const defaultOwner = "local"

// Server wraps the MCP server with Raido tools.
type Server struct {
	mcp      *server.MCPServer
	projects *projectstore.Service
	packs    *backpack.Service
}

// New creates a new MCP server with all Raido tools registered.
func New(projects *projectstore.Service, packs *backpack.Service) *Server {
	s := &Server{projects: projects, packs: packs}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List stored projects with their metadata, newest first."),
		mcp.WithString("owner", mcp.Description("Optional owner id (defaults to the local user)")),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("get_project",
		mcp.WithDescription("Read the metadata of a single project."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Project id")),
	), s.getProject)

	s.mcp.AddTool(mcp.NewTool("read_snapshot",
		mcp.WithDescription("Read the full JSON snapshot of a project."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Project id")),
	), s.readSnapshot)

	s.mcp.AddTool(mcp.NewTool("save_project",
		mcp.WithDescription("Create a new project or update an existing one from a JSON snapshot. "+
			"The snapshot MUST follow the canonical format (title, targets keyed by name, md5ext "+
			"asset references). Read the contract first via the get_snapshot_contract tool or "+
			"the raido://snapshot-format resource, and upload referenced assets beforehand."),
		mcp.WithString("snapshot", mcp.Required(), mcp.Description("Project snapshot JSON")),
		mcp.WithString("id", mcp.Description("Existing project id to update (empty to create)")),
		mcp.WithString("title", mcp.Description("Project title (create only)")),
		mcp.WithString("owner", mcp.Description("Owner id (defaults to the local user)")),
	), s.saveProject)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Upload an asset (costume, sound, backdrop) from a data: URI or an "+
			"http(s) URL. Returns the md5ext reference to use in snapshots."),
		mcp.WithString("url", mcp.Required(), mcp.Description("data: URI or http(s) URL of the asset bytes")),
		mcp.WithString("asset_type", mcp.Required(), mcp.Description("Asset type, e.g. costume, sound, backdrop")),
	), s.uploadAsset)

	s.mcp.AddTool(mcp.NewTool("list_backpack",
		mcp.WithDescription("List backpack items (reusable sprites, costumes, sounds and scripts)."),
		mcp.WithString("owner", mcp.Description("Optional owner id (defaults to the local user)")),
	), s.listBackpack)

	s.mcp.AddTool(mcp.NewTool("get_snapshot_contract",
		mcp.WithDescription("Returns the canonical Raido project snapshot contract. "+
			"Call this before creating or updating projects to ensure correct structure."),
	), s.getSnapshotContract)

	// Resource: snapshot format contract.
	s.mcp.AddResource(
		mcp.NewResource("raido://snapshot-format", "Project Snapshot Contract",
			mcp.WithResourceDescription("Canonical project snapshot format that all saves must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSnapshotFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := defaultOwner
	if v, err := req.RequireString("owner"); err == nil && v != "" {
		owner = v
	}
	projects, _, err := s.projects.List(owner, 50, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(projects, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.projects.Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(p, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.projects.Snapshot(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) saveProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot, err := req.RequireString("snapshot")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !json.Valid([]byte(snapshot)) {
		return mcp.NewToolResultError("snapshot is not valid JSON"), nil
	}

	id := ""
	if v, idErr := req.RequireString("id"); idErr == nil {
		id = v
	}
	params := saver.SaveParams{OwnerID: defaultOwner}
	if v, tErr := req.RequireString("title"); tErr == nil {
		params.Title = v
	}
	if v, oErr := req.RequireString("owner"); oErr == nil && v != "" {
		params.OwnerID = v
	}

	var res *saver.SaveResult
	if id == "" {
		res, err = s.projects.CreateProject(ctx, []byte(snapshot), params)
	} else {
		res, err = s.projects.UpdateProject(ctx, id, []byte(snapshot), params)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.Marshal(res)
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listBackpack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := defaultOwner
	if v, err := req.RequireString("owner"); err == nil && v != "" {
		owner = v
	}
	page, err := s.packs.List(owner, backpack.DefaultPageSize, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(page.Items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getSnapshotContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SnapshotFormatContract), nil
}

func (s *Server) readSnapshotFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://snapshot-format",
			MIMEType: "text/markdown",
			Text:     SnapshotFormatContract,
		},
	}, nil
}
