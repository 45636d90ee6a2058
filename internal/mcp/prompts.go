package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("import_workbook",
		mcp.WithPromptDescription("Guide through importing a workbook into a dataset and checking the result"),
		mcp.WithArgument("dataset",
			mcp.ArgumentDescription("Target dataset"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("path",
			mcp.ArgumentDescription("Workbook file path"),
			mcp.RequiredArgument(),
		),
	), s.handleImportWorkbookPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("audit_dataset",
		mcp.WithPromptDescription("Review a dataset for missing identities, blank fields and likely duplicates"),
		mcp.WithArgument("dataset",
			mcp.ArgumentDescription("Dataset to audit"),
			mcp.RequiredArgument(),
		),
	), s.handleAuditDatasetPrompt)
}

func (s *Server) handleImportWorkbookPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	dataset := req.Params.Arguments["dataset"]
	path := req.Params.Arguments["path"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Import %s into %s", path, dataset),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Import the workbook "%s" into the dataset "%s". Follow these steps:

1. Read the infradesk://datasets/%s/schema resource to learn the identity field and current columns
2. Use list_ingest_sources to confirm the file type is supported and which config fields apply
3. If the workbook headers differ from the dataset columns, prepare a headerMapJSON renaming them
4. Pick keyColumns that identify a row (never the identity field) so re-imports do not duplicate rows
5. Run ingest_file and report totalRows, newRows and duplicates
6. Use list_records with a small pageSize to spot-check the imported rows`, path, dataset, dataset),
				},
			},
		},
	}, nil
}

func (s *Server) handleAuditDatasetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	dataset := req.Params.Arguments["dataset"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Audit dataset %s", dataset),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Audit the dataset "%s". Follow these steps:

1. Run repair_identities for the dataset and note how many identities were filled
2. Page through list_records (all=true for small datasets) and list columns that are mostly blank
3. Sort by likely key columns with sortField and report groups of rows that look like duplicates
4. Check list_ingest_runs for recent failed imports into this dataset
5. Summarize findings; do not delete anything without asking first`, dataset),
				},
			},
		},
	}, nil
}
