// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes media check tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mediacheck/internal/apperr"
	"github.com/starford/mediacheck/internal/models"
	"github.com/starford/mediacheck/internal/noteservice"
)

const conventionsURI = "mediacheck://conventions"

// Server wraps the MCP server with mediacheck tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"mediacheck",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("check_media",
		mcp.WithDescription("Compare the media referenced by notes with the media folder. "+
			"Returns missing files, unused files, warnings and the ids of notes with LaTeX errors. Pass files to check "+
			"against a list of names instead of the folder on disk."),
		mcp.WithArray("files", mcp.WithStringItems(),
			mcp.Description("Optional snapshot of the media folder contents")),
	), s.checkMedia)

	s.mcp.AddTool(mcp.NewTool("render_latex",
		mcp.WithDescription("Replace [latex], [$] and [$$] markers in HTML with image tags, "+
			"building missing images. Read the conventions resource for the marker syntax."),
		mcp.WithString("html", mcp.Required(), mcp.Description("Field HTML containing LaTeX markers")),
		mcp.WithNumber("notetype_id", mcp.Required(), mcp.Description("Note type whose LaTeX settings apply")),
	), s.renderLatex)

	s.mcp.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Read a note with its fields and tags."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("note_media",
		mcp.WithDescription("List the local media files a note references."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.noteMedia)

	s.mcp.AddResource(
		mcp.NewResource(conventionsURI, "Media Folder Conventions",
			mcp.WithResourceDescription("How notes reference media and how the media folder is organised."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConventions,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) checkMedia(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files := req.GetStringSlice("files", nil)
	res, err := s.svc.Check(ctx, files)
	if err != nil {
		return toolError(err), nil
	}
	ids, err := s.svc.LatexErrorNotes(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(checkMediaResult{CheckResult: res, ErrorNoteIDs: ids})
}

// checkMediaResult adds the ids of the failing notes so an agent can fetch them.
type checkMediaResult struct {
	*models.CheckResult
	ErrorNoteIDs []int64 `json:"error_note_ids"`
}

func (s *Server) renderLatex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	html, err := req.RequireString("html")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireInt("notetype_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Render(ctx, html, int64(id))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, int64(id))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(note)
}

func (s *Server) noteMedia(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	files, err := s.svc.FilesInNote(ctx, int64(id))
	if err != nil {
		return toolError(err), nil
	}
	if len(files) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("note %d references no local media", id)), nil
	}
	return mcp.NewToolResultText(strings.Join(files, "\n")), nil
}

func (s *Server) readConventions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      conventionsURI,
			MIMEType: "text/markdown",
			Text:     MediaConventions,
		},
	}, nil
}
