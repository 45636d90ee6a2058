package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"infradesk/internal/domain"
	"infradesk/internal/service"
)

func (s *Server) registerRecordTools() {
	s.mcp.AddTool(mcp.NewTool("list_datasets",
		mcp.WithDescription("List every dataset with its identity field, columns and record count"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListDatasets)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List records of a dataset with optional search, sort and pagination. Identities missing from stored rows are repaired first."),
		mcp.WithString("dataset", mcp.Description("Dataset name"), mcp.Required()),
		mcp.WithString("search", mcp.Description("Case-insensitive substring matched against every field")),
		mcp.WithString("sortField", mcp.Description("Field to sort by")),
		mcp.WithString("sortDirection", mcp.Description("asc (default) or desc"), mcp.Enum("asc", "desc")),
		mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
		mcp.WithNumber("pageSize", mcp.Description("Rows per page; omit to return every matching row")),
		mcp.WithBoolean("all", mcp.Description("Return every matching row, ignoring pagination")),
	), s.handleListRecords)

	s.mcp.AddTool(mcp.NewTool("get_record",
		mcp.WithDescription("Get one record by 0-based position or by identity"),
		mcp.WithString("dataset", mcp.Description("Dataset name"), mcp.Required()),
		mcp.WithNumber("position", mcp.Description("0-based position in stored order")),
		mcp.WithString("identity", mcp.Description("Identity value (alternative to position)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleGetRecord)

	s.mcp.AddTool(mcp.NewTool("insert_record",
		mcp.WithDescription("Append a record. The identity and created_at/updated_at are generated."),
		mcp.WithString("dataset", mcp.Description("Dataset name (created if absent)"), mcp.Required()),
		mcp.WithString("fieldsJSON", mcp.Description(`Record fields as a JSON object, e.g. {"title":"Bridge A"}`), mcp.Required()),
	), s.handleInsertRecord)

	s.mcp.AddTool(mcp.NewTool("update_record",
		mcp.WithDescription("Merge fields into a record located by position or identity. The identity and created_at are preserved."),
		mcp.WithString("dataset", mcp.Description("Dataset name"), mcp.Required()),
		mcp.WithNumber("position", mcp.Description("0-based position in stored order")),
		mcp.WithString("identity", mcp.Description("Identity value (alternative to position)")),
		mcp.WithString("fieldsJSON", mcp.Description("Fields to merge as a JSON object"), mcp.Required()),
	), s.handleUpdateRecord)

	s.mcp.AddTool(mcp.NewTool("delete_record",
		mcp.WithDescription("🛑 DESTRUCTIVE: Remove a record located by position or identity."),
		mcp.WithString("dataset", mcp.Description("Dataset name"), mcp.Required()),
		mcp.WithNumber("position", mcp.Description("0-based position in stored order")),
		mcp.WithString("identity", mcp.Description("Identity value (alternative to position)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteRecord)

	s.mcp.AddTool(mcp.NewTool("delete_dataset",
		mcp.WithDescription("🛑 DESTRUCTIVE: Remove a whole dataset and its backing file."),
		mcp.WithString("dataset", mcp.Description("Dataset name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteDataset)

	s.mcp.AddTool(mcp.NewTool("export_dataset",
		mcp.WithDescription("Return the stored delimited text of a dataset unchanged"),
		mcp.WithString("dataset", mcp.Description("Dataset name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleExportDataset)

	s.mcp.AddTool(mcp.NewTool("repair_identities",
		mcp.WithDescription("Fill missing identities. Repairs every dataset when dataset is omitted."),
		mcp.WithString("dataset", mcp.Description("Dataset name (optional)")),
	), s.handleRepairIdentities)
}

func (s *Server) handleListDatasets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	datasets, err := s.records.ListDatasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return jsonResult(datasets)
}

func (s *Server) handleListRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := requireDataset(req)
	if err != nil {
		return nil, err
	}
	q := service.ListQuery{
		Search:        req.GetString("search", ""),
		SortField:     req.GetString("sortField", ""),
		SortDirection: req.GetString("sortDirection", ""),
		Page:          req.GetInt("page", 1),
		PageSize:      req.GetInt("pageSize", 0),
		ReturnAll:     req.GetBool("all", false),
	}
	res, err := s.records.List(ctx, dataset, q)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return jsonResult(res)
}

func (s *Server) handleGetRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := requireDataset(req)
	if err != nil {
		return nil, err
	}
	loc, err := locatorOf(req)
	if err != nil {
		return nil, err
	}

	var rec *domain.Record
	if loc.byIdentity {
		rec, err = s.records.GetByIdentity(ctx, dataset, loc.identity)
	} else {
		rec, err = s.records.GetByPosition(ctx, dataset, loc.position)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return jsonResult(rec)
}

func (s *Server) handleInsertRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := requireDataset(req)
	if err != nil {
		return nil, err
	}
	fields, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.Insert(ctx, dataset, fields)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	return jsonResult(rec)
}

func (s *Server) handleUpdateRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := requireDataset(req)
	if err != nil {
		return nil, err
	}
	loc, err := locatorOf(req)
	if err != nil {
		return nil, err
	}
	fields, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	var rec *domain.Record
	if loc.byIdentity {
		rec, err = s.records.UpdateByIdentity(ctx, dataset, loc.identity, fields)
	} else {
		rec, err = s.records.UpdateByPosition(ctx, dataset, loc.position, fields)
	}
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	return jsonResult(rec)
}

func (s *Server) handleDeleteRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := requireDataset(req)
	if err != nil {
		return nil, err
	}
	loc, err := locatorOf(req)
	if err != nil {
		return nil, err
	}

	approved, err := s.approval.Request(ctx, "delete_record",
		fmt.Sprintf("Delete record %s from %s", loc, dataset))
	if err != nil || !approved {
		return textResult(fmt.Sprintf("Action rejected: %v", err)), nil
	}

	var rec *domain.Record
	if loc.byIdentity {
		rec, err = s.records.DeleteByIdentity(ctx, dataset, loc.identity)
	} else {
		rec, err = s.records.DeleteByPosition(ctx, dataset, loc.position)
	}
	if err != nil {
		return nil, fmt.Errorf("delete record: %w", err)
	}
	return jsonResult(rec)
}

func (s *Server) handleDeleteDataset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := requireDataset(req)
	if err != nil {
		return nil, err
	}

	approved, err := s.approval.Request(ctx, "delete_dataset", fmt.Sprintf("Delete dataset %s", dataset))
	if err != nil || !approved {
		return textResult(fmt.Sprintf("Action rejected: %v", err)), nil
	}

	if err := s.records.DeleteDataset(ctx, dataset); err != nil {
		return nil, fmt.Errorf("delete dataset: %w", err)
	}
	return textResult(fmt.Sprintf("Dataset %s deleted", dataset)), nil
}

func (s *Server) handleExportDataset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := requireDataset(req)
	if err != nil {
		return nil, err
	}
	data, err := s.records.ExportRaw(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("export dataset: %w", err)
	}
	return textResult(string(data)), nil
}

func (s *Server) handleRepairIdentities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset := req.GetString("dataset", "")
	if dataset == "" {
		results, err := s.records.RepairAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("repair identities: %w", err)
		}
		return jsonResult(results)
	}
	res, err := s.records.RepairIdentities(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("repair identities: %w", err)
	}
	return jsonResult(res)
}

// ── Argument helpers ───────────────────────────────────────

// locator addresses a record by identity or by 0-based position.
type locator struct {
	byIdentity bool
	identity   string
	position   int
}

func (l locator) String() string {
	if l.byIdentity {
		return l.identity
	}
	return fmt.Sprintf("#%d", l.position)
}

func locatorOf(req mcp.CallToolRequest) (locator, error) {
	if id := req.GetString("identity", ""); id != "" {
		return locator{byIdentity: true, identity: id}, nil
	}
	raw, ok := req.GetArguments()["position"]
	if !ok || raw == nil {
		return locator{}, fmt.Errorf("position or identity is required")
	}
	pos, err := cast.ToIntE(raw)
	if err != nil {
		return locator{}, fmt.Errorf("position: %w", err)
	}
	return locator{position: pos}, nil
}

func fieldsOf(req mcp.CallToolRequest) (*domain.Record, error) {
	raw := req.GetString("fieldsJSON", "")
	if raw == "" {
		return nil, fmt.Errorf("fieldsJSON is required")
	}
	rec := domain.NewRecord()
	if err := rec.UnmarshalJSON([]byte(raw)); err != nil {
		return nil, fmt.Errorf("parse fieldsJSON: %w", err)
	}
	return rec, nil
}
