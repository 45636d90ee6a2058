// Package ingest turns parsed workbooks into dataset records: header
// renaming, cell coercion, duplicate suppression and batch identity
// assignment.
package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// CellKind tells Render how to present a cell value.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
	CellDate
	CellBool
)

// Cell is one workbook cell. Value is a string, float64, time.Time or bool
// depending on Kind.
type Cell struct {
	Kind  CellKind
	Value any
}

// Sheet is a named 2-D grid whose first row is the header.
type Sheet struct {
	Name string
	Rows [][]Cell
}

// Workbook is an ordered list of sheets.
type Workbook struct {
	Sheets []Sheet
}

// Typed cell constructors.
func StringCell(s string) Cell { return Cell{Kind: CellString, Value: s} }
func NumberCell(f float64) Cell { return Cell{Kind: CellNumber, Value: f} }
func DateCell(t time.Time) Cell { return Cell{Kind: CellDate, Value: t} }
func BoolCell(b bool) Cell { return Cell{Kind: CellBool, Value: b} }
func EmptyCell() Cell { return Cell{} }

// CellOf infers a cell from a loosely typed value, as produced by JSON
// decoding or a database driver.
func CellOf(v any) Cell {
	switch val := v.(type) {
	case nil:
		return EmptyCell()
	case Cell:
		return val
	case string:
		if strings.TrimSpace(val) == "" {
			return EmptyCell()
		}
		return StringCell(val)
	case bool:
		return BoolCell(val)
	case time.Time:
		return DateCell(val)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return NumberCell(cast.ToFloat64(val))
	default:
		return StringCell(cast.ToString(val))
	}
}

// IsBlank reports whether the cell renders to nothing.
func (c Cell) IsBlank() bool {
	return c.Render() == ""
}

// Render is the stored text form of a cell: dates as YYYY-MM-DD, numbers
// as their shortest decimal string, everything else trimmed with commas
// replaced by semicolons.
func (c Cell) Render() string {
	switch c.Kind {
	case CellEmpty:
		return ""
	case CellDate:
		if t, ok := c.Value.(time.Time); ok {
			return t.Format("2006-01-02")
		}
	case CellNumber:
		if f, err := cast.ToFloat64E(c.Value); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case CellBool:
		return strconv.FormatBool(cast.ToBool(c.Value))
	}
	return CleanText(cast.ToString(c.Value))
}

// CleanText trims s and replaces literal commas with semicolons.
func CleanText(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", ";")
}
