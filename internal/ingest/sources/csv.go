package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"infradesk/internal/ingest"
)

// ── CSV File Source ─────────────────────────────────────────
// Reads a delimited file as a single sheet named after the file.

type csvSource struct{}

func init() { ingest.RegisterSource(&csvSource{}) }

func (s *csvSource) Spec() ingest.SourceSpec {
	return ingest.SourceSpec{
		Type:       "csv",
		Label:      "CSV File",
		Extensions: []string{"csv", "tsv", "txt"},
		ConfigFields: []ingest.ConfigField{
			{Key: "delimiter", Label: "Delimiter", Default: ",", Help: "Column delimiter (default: comma, tab for .tsv)"},
			{Key: "hasHeader", Label: "Has Header", Default: "true", Help: "Whether the first row contains column names"},
		},
	}
}

func (s *csvSource) Read(ctx context.Context, in ingest.Input) (*ingest.Workbook, error) {
	if in.Reader == nil {
		return nil, fmt.Errorf("csv source needs file content")
	}

	reader := csv.NewReader(in.Reader)
	reader.Comma = delimiterFor(in)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return &ingest.Workbook{}, nil
	}
	records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")

	if !in.Config.Bool("hasHeader", true) {
		// Generate column names: col_1, col_2, ...
		header := make([]string, len(records[0]))
		for i := range header {
			header[i] = fmt.Sprintf("col_%d", i+1)
		}
		records = append([][]string{header}, records...)
	}

	sheet := ingest.Sheet{Name: ingest.SheetName(in.Name), Rows: make([][]ingest.Cell, 0, len(records))}
	for _, rec := range records {
		row := make([]ingest.Cell, len(rec))
		for j, v := range rec {
			row[j] = ingest.CellOf(v)
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return &ingest.Workbook{Sheets: []ingest.Sheet{sheet}}, nil
}

func delimiterFor(in ingest.Input) rune {
	if d := cast.ToString(in.Config["delimiter"]); d != "" {
		if d == `\t` || strings.EqualFold(d, "tab") {
			return '\t'
		}
		return []rune(d)[0]
	}
	if strings.HasSuffix(strings.ToLower(in.Name), ".tsv") {
		return '\t'
	}
	return ','
}
