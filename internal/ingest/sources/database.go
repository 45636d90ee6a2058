package sources

import (
	"context"
	"fmt"

	"infradesk/internal/dbclient"
	"infradesk/internal/ingest"
)

// ── Database Source ────────────────────────────────────────
// Reads the result of a query against a configured connection as one sheet.

// QueryRunner runs a read query against a named connection. The database
// service implements it.
type QueryRunner interface {
	Query(ctx context.Context, connection, query string, limit int) (*dbclient.QueryResult, error)
}

type databaseSource struct {
	runner QueryRunner
}

// NewDatabaseSource creates the database source. The app registers it at
// startup once connections are configured.
func NewDatabaseSource(runner QueryRunner) ingest.Source {
	return &databaseSource{runner: runner}
}

func (s *databaseSource) Spec() ingest.SourceSpec {
	return ingest.SourceSpec{
		Type:  "database",
		Label: "Database Query",
		ConfigFields: []ingest.ConfigField{
			{Key: "connection", Label: "Connection", Required: true, Help: "Name of a configured connection"},
			{Key: "query", Label: "Query", Required: true, Help: "SQL SELECT, or a MongoDB find/aggregate document"},
			{Key: "limit", Label: "Row Limit", Help: "Maximum rows to import"},
			{Key: "sheet", Label: "Sheet Name", Help: "source_sheet value for imported rows (default: connection name)"},
		},
	}
}

func (s *databaseSource) Read(ctx context.Context, in ingest.Input) (*ingest.Workbook, error) {
	conn := in.Config.String("connection")
	query := in.Config.String("query")
	if conn == "" || query == "" {
		return nil, fmt.Errorf("connection and query are required")
	}
	if s.runner == nil {
		return nil, fmt.Errorf("database provider not initialized")
	}

	res, err := s.runner.Query(ctx, conn, query, in.Config.Int("limit", 0))
	if err != nil {
		return nil, err
	}

	name := in.Config.String("sheet")
	if name == "" {
		name = conn
	}
	rows := make([][]ingest.Cell, 0, len(res.Rows)+1)
	head := make([]ingest.Cell, len(res.Columns))
	for i, col := range res.Columns {
		head[i] = ingest.StringCell(col)
	}
	rows = append(rows, head)
	for _, r := range res.Rows {
		cells := make([]ingest.Cell, len(r))
		for j, v := range r {
			cells[j] = ingest.CellOf(v)
		}
		rows = append(rows, cells)
	}
	return &ingest.Workbook{Sheets: []ingest.Sheet{{Name: name, Rows: rows}}}, nil
}
