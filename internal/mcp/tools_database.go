package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerDatabaseTools() {
	s.mcp.AddTool(mcp.NewTool("list_db_connections",
		mcp.WithDescription("List the configured database connections usable as ingest sources (type \"database\")"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListDBConnections)

	s.mcp.AddTool(mcp.NewTool("test_db_connection",
		mcp.WithDescription("Check that a configured database connection is reachable"),
		mcp.WithString("connection", mcp.Description("Connection name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleTestDBConnection)
}

func (s *Server) handleListDBConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type connectionSummary struct {
		Name     string `json:"name"`
		Driver   string `json:"driver"`
		Database string `json:"database,omitempty"`
	}
	conns := s.database.ListConnections()
	out := make([]connectionSummary, len(conns))
	for i, c := range conns {
		out[i] = connectionSummary{Name: c.Name, Driver: string(c.Driver), Database: c.Database}
	}
	return jsonResult(out)
}

func (s *Server) handleTestDBConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("connection", "")
	if name == "" {
		return nil, fmt.Errorf("connection is required")
	}
	if err := s.database.TestConnection(ctx, name); err != nil {
		return nil, fmt.Errorf("test connection %s: %w", name, err)
	}
	return textResult(fmt.Sprintf("Connection %s OK", name)), nil
}
