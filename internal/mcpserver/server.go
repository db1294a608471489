// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes tribuna tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tribuna/internal/apperr"
	"github.com/starford/tribuna/internal/caseservice"
	"github.com/starford/tribuna/internal/cnj"
	"github.com/starford/tribuna/internal/movement"
)

// Server wraps the MCP server with tribuna tools.
type Server struct {
	mcp *server.MCPServer
	svc *caseservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *caseservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"tribuna",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("resolve_tribunal",
		mcp.WithDescription("Identify the tribunal that issued a Brazilian CNJ case number. "+
			"Accepts masked (0001234-56.2024.8.26.0100) or bare digits."),
		mcp.WithString("numero", mcp.Required(), mcp.Description("CNJ case number")),
	), s.resolveTribunal)

	s.mcp.AddTool(mcp.NewTool("list_tribunals",
		mcp.WithDescription("List known tribunals, optionally filtered by justice branch."),
		mcp.WithString("kind", mcp.Description("estadual, trabalho, eleitoral, federal or superior")),
	), s.listTribunals)

	s.mcp.AddTool(mcp.NewTool("list_movements",
		mcp.WithDescription("List the docket movements of a registered case, newest first, with read state."),
		mcp.WithString("case_id", mcp.Required(), mcp.Description("Case ID")),
		mcp.WithBoolean("unread_only", mcp.Description("Only return unread movements")),
	), s.listMovements)

	s.mcp.AddTool(mcp.NewTool("mark_movements_read",
		mcp.WithDescription("Mark every movement of a case as read."),
		mcp.WithString("case_id", mcp.Required(), mcp.Description("Case ID")),
	), s.markMovementsRead)

	s.mcp.AddTool(mcp.NewTool("refresh_case",
		mcp.WithDescription("Fetch a case from Datajud and merge any new movements."),
		mcp.WithString("case_id", mcp.Required(), mcp.Description("Case ID")),
	), s.refreshCase)

	s.mcp.AddTool(mcp.NewTool("search_movements",
		mcp.WithDescription("Search movement names and supplements across all cases."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	), s.searchMovements)

	s.mcp.AddResource(
		mcp.NewResource(TribunalsURI, "CNJ tribunal table",
			mcp.WithResourceDescription("Tribunal codes, names and Datajud aliases."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTribunalsResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("case not found")
	case errors.Is(err, apperr.ErrUpstream):
		return mcp.NewToolResultError(fmt.Sprintf("datajud unavailable: %v", err))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) resolveTribunal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	numero, err := req.RequireString("numero")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d := cnj.ResolveTribunal(numero)
	return jsonResult(map[string]any{
		"numero":   cnj.Format(numero),
		"valid":    cnj.Valid(numero),
		"tribunal": d,
		"label":    d.Label(),
	}), nil
}

func (s *Server) listTribunals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := cnj.Kind(req.GetString("kind", ""))
	var out []cnj.Descriptor
	for _, d := range cnj.Tribunals() {
		if kind == "" || d.Kind == kind {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("no tribunals of kind %q", kind)), nil
	}
	return jsonResult(out), nil
}

func (s *Server) listMovements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	feed, err := s.svc.Feed(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	ms := feed.Movements
	if req.GetBool("unread_only", false) {
		ms = make([]movement.Movement, 0, feed.Unread)
		for _, m := range feed.Movements {
			if !m.State.IsRead() {
				ms = append(ms, m)
			}
		}
	}
	if len(ms) == 0 {
		return mcp.NewToolResultText("no movements"), nil
	}
	return jsonResult(map[string]any{"unread": feed.Unread, "movements": ms}), nil
}

func (s *Server) markMovementsRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.MarkRead(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("marked %d movement(s) as read", n)), nil
}

func (s *Server) refreshCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Refresh(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"added":     res.Added,
		"unread":    res.Unread,
		"unchanged": res.Unchanged,
		"total":     len(res.Movements),
	}), nil
}

func (s *Server) searchMovements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.SearchMovements(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readTribunalsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      TribunalsURI,
			MIMEType: "text/markdown",
			Text:     TribunalTable(),
		},
	}, nil
}
