package service

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"

	"infradesk/internal/domain"
)

// ListQuery narrows and orders a record listing. The zero value returns
// every record in stored order.
type ListQuery struct {
	Search        string `json:"search,omitempty"`
	SortField     string `json:"sortField,omitempty"`
	SortDirection string `json:"sortDirection,omitempty"` // "asc" (default) | "desc"
	Page          int    `json:"page,omitempty"`          // 1-based, default 1
	PageSize      int    `json:"pageSize,omitempty"`      // 0 = unbounded
	ReturnAll     bool   `json:"returnAll,omitempty"`
}

// ListResult is one page of a listing. Total counts the filtered set
// before pagination.
type ListResult struct {
	Rows    []*domain.Record `json:"rows"`
	Total   int              `json:"total"`
	Columns []string         `json:"columns"`
}

// applyQuery filters, sorts and paginates records. It never mutates the
// input slice.
func applyQuery(records []*domain.Record, q ListQuery) ([]*domain.Record, int) {
	rows := filterRecords(records, q.Search)
	sortRecords(rows, q.SortField, q.SortDirection)
	total := len(rows)
	return paginate(rows, q), total
}

// filterRecords keeps records with any field value containing term,
// compared case-insensitively. The term is matched verbatim, surrounding
// whitespace included.
func filterRecords(records []*domain.Record, term string) []*domain.Record {
	out := make([]*domain.Record, 0, len(records))
	if term == "" {
		return append(out, records...)
	}
	fold := cases.Fold()
	needle := fold.String(term)
	for _, r := range records {
		match := false
		r.Each(func(_ string, v any) {
			if !match && strings.Contains(fold.String(cast.ToString(v)), needle) {
				match = true
			}
		})
		if match {
			out = append(out, r)
		}
	}
	return out
}

// sortRecords sorts in place by field. Ties keep their relative order in
// both directions.
func sortRecords(records []*domain.Record, field, direction string) {
	if field == "" {
		return
	}
	desc := strings.EqualFold(direction, "desc")
	sort.SliceStable(records, func(i, j int) bool {
		c := compareValues(records[i].String(field), records[j].String(field))
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// compareValues orders numerically when both sides parse as numbers and
// lexicographically otherwise.
func compareValues(a, b string) int {
	fa, aErr := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, bErr := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if aErr == nil && bErr == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func paginate(rows []*domain.Record, q ListQuery) []*domain.Record {
	if q.ReturnAll || q.PageSize <= 0 {
		return rows
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	// Bound page before multiplying so huge values cannot overflow.
	if page-1 > len(rows)/q.PageSize {
		return []*domain.Record{}
	}
	start := (page - 1) * q.PageSize
	if start >= len(rows) {
		return []*domain.Record{}
	}
	end := len(rows)
	if q.PageSize < end-start {
		end = start + q.PageSize
	}
	return rows[start:end]
}
