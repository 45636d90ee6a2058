package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"infradesk/internal/domain"
	"infradesk/internal/service"
)

func (s *Server) registerIngestTools() {
	s.mcp.AddTool(mcp.NewTool("ingest_file",
		mcp.WithDescription("Import a workbook (csv, tsv, json, xlsx) or a database query into a dataset. Every row gets a generated identity; rows matching existing ones on the key columns are skipped as duplicates."),
		mcp.WithString("dataset", mcp.Description("Target dataset (created if absent)"), mcp.Required()),
		mcp.WithString("path", mcp.Description("Workbook file path. The source type is taken from its extension unless sourceType is set.")),
		mcp.WithString("sourceType", mcp.Description("Source type (use list_ingest_sources to see available types)")),
		mcp.WithString("sourceConfigJSON", mcp.Description(`Source configuration as JSON, e.g. {"delimiter":";"} or {"connection":"crm","query":"SELECT ..."}`)),
		mcp.WithString("headerMapJSON", mcp.Description(`Optional header renames as JSON, e.g. {"Project Name":"project_name"}. Overrides the dataset profile.`)),
		mcp.WithArray("keyColumns", mcp.Description("Optional duplicate-detection columns. Overrides the dataset profile."), mcp.WithStringItems()),
	), s.handleIngestFile)

	s.mcp.AddTool(mcp.NewTool("list_ingest_sources",
		mcp.WithDescription("List available workbook source types with their configuration fields"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListIngestSources)

	s.mcp.AddTool(mcp.NewTool("list_ingest_runs",
		mcp.WithDescription("List recent ingestion runs with their statistics or errors"),
		mcp.WithString("dataset", mcp.Description("Dataset name (optional, all datasets when omitted)")),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return (default 20)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListIngestRuns)
}

func (s *Server) handleIngestFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := requireDataset(req)
	if err != nil {
		return nil, err
	}
	in := service.IngestRequest{
		Dataset:    dataset,
		Path:       req.GetString("path", ""),
		SourceType: req.GetString("sourceType", ""),
	}
	if in.Path == "" && in.SourceType == "" {
		return nil, fmt.Errorf("path or sourceType is required")
	}

	if raw := req.GetString("sourceConfigJSON", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Config); err != nil {
			return nil, fmt.Errorf("parse sourceConfigJSON: %w", err)
		}
	}

	headerRaw := req.GetString("headerMapJSON", "")
	keys := req.GetStringSlice("keyColumns", nil)
	if headerRaw != "" || keys != nil {
		opts := s.ingest.Profile(dataset)
		if headerRaw != "" {
			opts.HeaderMap = nil
			if err := json.Unmarshal([]byte(headerRaw), &opts.HeaderMap); err != nil {
				return nil, fmt.Errorf("parse headerMapJSON: %w", err)
			}
		}
		if keys != nil {
			opts.KeyColumns = keys
		}
		in.Options = &opts
	}

	stats, err := s.ingest.Ingest(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	return jsonResult(stats)
}

func (s *Server) handleListIngestSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.ingest.ListSources())
}

func (s *Server) handleListIngestRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.ingest.ListRuns(req.GetString("dataset", ""), req.GetInt("limit", 20))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if runs == nil {
		runs = []domain.IngestRun{}
	}
	return jsonResult(runs)
}
