package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"infradesk/internal/ingest"
)

// ── JSON File Source ────────────────────────────────────────
// An array of objects becomes one sheet named after the file; an object
// whose values are arrays of objects becomes one sheet per key.

type jsonSource struct{}

func init() { ingest.RegisterSource(&jsonSource{}) }

type jsonRow = *orderedmap.OrderedMap[string, any]

func (s *jsonSource) Spec() ingest.SourceSpec {
	return ingest.SourceSpec{
		Type:       "json",
		Label:      "JSON File",
		Extensions: []string{"json"},
		ConfigFields: []ingest.ConfigField{
			{Key: "dataPath", Label: "Data Path", Help: "Dot-separated path to the data (e.g., 'data.items'). Leave empty to use the root."},
		},
	}
}

func (s *jsonSource) Read(ctx context.Context, in ingest.Input) (*ingest.Workbook, error) {
	if in.Reader == nil {
		return nil, fmt.Errorf("json source needs file content")
	}
	data, err := io.ReadAll(in.Reader)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}

	raw, err := navigate(json.RawMessage(data), in.Config.String("dataPath"))
	if err != nil {
		return nil, err
	}

	switch firstByte(raw) {
	case '[':
		rows, err := decodeRows(raw)
		if err != nil {
			return nil, err
		}
		return &ingest.Workbook{Sheets: []ingest.Sheet{rowsToSheet(ingest.SheetName(in.Name), rows)}}, nil
	case '{':
		obj := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(raw, obj); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		wb := &ingest.Workbook{}
		for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
			if firstByte(pair.Value) != '[' {
				continue
			}
			rows, err := decodeRows(pair.Value)
			if err != nil {
				return nil, fmt.Errorf("sheet %q: %w", pair.Key, err)
			}
			wb.Sheets = append(wb.Sheets, rowsToSheet(pair.Key, rows))
		}
		return wb, nil
	case 0:
		return &ingest.Workbook{}, nil
	default:
		return nil, fmt.Errorf("parse json: expected an array or object")
	}
}

// navigate follows a dot-separated path through nested objects.
func navigate(raw json.RawMessage, path string) (json.RawMessage, error) {
	if path == "" {
		return raw, nil
	}
	for _, part := range strings.Split(path, ".") {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("invalid data path: %q is not inside an object", part)
		}
		next, ok := m[part]
		if !ok {
			return nil, fmt.Errorf("invalid data path: %q not found", part)
		}
		raw = next
	}
	return raw, nil
}

func firstByte(raw []byte) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func decodeRows(raw json.RawMessage) ([]jsonRow, error) {
	var rows []jsonRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parse json rows: %w", err)
	}
	return rows, nil
}

// rowsToSheet builds a grid whose header is every key in first-seen order.
func rowsToSheet(name string, rows []jsonRow) ingest.Sheet {
	var header []string
	index := map[string]int{}
	for _, row := range rows {
		if row == nil {
			continue
		}
		for pair := row.Oldest(); pair != nil; pair = pair.Next() {
			if _, ok := index[pair.Key]; !ok {
				index[pair.Key] = len(header)
				header = append(header, pair.Key)
			}
		}
	}
	if len(header) == 0 {
		return ingest.Sheet{Name: name}
	}

	grid := make([][]ingest.Cell, 0, len(rows)+1)
	head := make([]ingest.Cell, len(header))
	for i, h := range header {
		head[i] = ingest.StringCell(h)
	}
	grid = append(grid, head)

	for _, row := range rows {
		cells := make([]ingest.Cell, len(header))
		if row != nil {
			for pair := row.Oldest(); pair != nil; pair = pair.Next() {
				cells[index[pair.Key]] = jsonCell(pair.Value)
			}
		}
		grid = append(grid, cells)
	}
	return ingest.Sheet{Name: name, Rows: grid}
}

// jsonCell keeps scalars typed and flattens nested values to compact JSON.
func jsonCell(v any) ingest.Cell {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return ingest.EmptyCell()
		}
		return ingest.StringCell(string(b))
	default:
		return ingest.CellOf(v)
	}
}
