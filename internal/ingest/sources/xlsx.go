package sources

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"infradesk/internal/ingest"
)

// ── XLSX Workbook Source ────────────────────────────────────
// Reads every worksheet. Numeric cells carrying a date number format
// become date cells.

type xlsxSource struct{}

func init() { ingest.RegisterSource(&xlsxSource{}) }

func (s *xlsxSource) Spec() ingest.SourceSpec {
	return ingest.SourceSpec{
		Type:       "xlsx",
		Label:      "Excel Workbook",
		Extensions: []string{"xlsx", "xlsm"},
		ConfigFields: []ingest.ConfigField{
			{Key: "sheets", Label: "Sheets", Help: "Comma-separated sheet names to read (default: all)"},
		},
	}
}

func (s *xlsxSource) Read(ctx context.Context, in ingest.Input) (*ingest.Workbook, error) {
	if in.Reader == nil {
		return nil, fmt.Errorf("xlsx source needs file content")
	}
	f, err := excelize.OpenReader(in.Reader)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	r := &xlsxReader{file: f, dateStyles: map[int]bool{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		r.date1904 = *props.Date1904
	}

	wanted := sheetFilter(in.Config.String("sheets"))
	wb := &ingest.Workbook{}
	for _, name := range f.GetSheetList() {
		if wanted != nil && !wanted[name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sheet, err := r.sheet(name)
		if err != nil {
			return nil, err
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func sheetFilter(list string) map[string]bool {
	if list == "" {
		return nil
	}
	m := map[string]bool{}
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			m[name] = true
		}
	}
	return m
}

type xlsxReader struct {
	file       *excelize.File
	date1904   bool
	dateStyles map[int]bool
}

func (r *xlsxReader) sheet(name string) (ingest.Sheet, error) {
	rows, err := r.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return ingest.Sheet{}, fmt.Errorf("read sheet %q: %w", name, err)
	}
	sheet := ingest.Sheet{Name: name, Rows: make([][]ingest.Cell, 0, len(rows))}
	for i, row := range rows {
		cells := make([]ingest.Cell, len(row))
		for j, raw := range row {
			cells[j] = r.cell(name, j+1, i+1, raw)
		}
		sheet.Rows = append(sheet.Rows, cells)
	}
	return sheet, nil
}

func (r *xlsxReader) cell(sheet string, col, row int, raw string) ingest.Cell {
	if strings.TrimSpace(raw) == "" {
		return ingest.EmptyCell()
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return ingest.StringCell(raw)
	}
	typ, _ := r.file.GetCellType(sheet, axis)
	switch typ {
	case excelize.CellTypeBool:
		return ingest.BoolCell(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return ingest.DateCell(t)
		}
		return ingest.StringCell(raw)
	case excelize.CellTypeInlineString, excelize.CellTypeSharedString, excelize.CellTypeError:
		return ingest.StringCell(raw)
	}

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return ingest.StringCell(raw)
	}
	if r.isDate(sheet, axis) {
		if t, err := excelize.ExcelDateToTime(n, r.date1904); err == nil {
			return ingest.DateCell(t)
		}
	}
	return ingest.NumberCell(n)
}

// isDate reports whether the cell's number format renders a date.
func (r *xlsxReader) isDate(sheet, axis string) bool {
	idx, err := r.file.GetCellStyle(sheet, axis)
	if err != nil || idx == 0 {
		return false
	}
	if v, ok := r.dateStyles[idx]; ok {
		return v
	}
	isDate := false
	if style, err := r.file.GetStyle(idx); err == nil {
		switch {
		case style.NumFmt >= 14 && style.NumFmt <= 22, style.NumFmt >= 45 && style.NumFmt <= 47:
			isDate = true
		case style.CustomNumFmt != nil:
			isDate = isDateFormat(*style.CustomNumFmt)
		}
	}
	r.dateStyles[idx] = isDate
	return isDate
}

var numFmtNoise = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)

// isDateFormat reports whether a custom number format code contains a
// day or year token once literals and bracketed sections are removed.
func isDateFormat(code string) bool {
	code = strings.ToLower(numFmtNoise.ReplaceAllString(code, ""))
	return strings.ContainsAny(code, "dy")
}
