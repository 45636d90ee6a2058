package ingest

import (
	"strings"

	"infradesk/internal/domain"
	"infradesk/internal/identity"
)

// Options configure one ingestion batch.
type Options struct {
	// HeaderMap renames trimmed sheet headers to field names. Unmapped
	// headers pass through unchanged.
	HeaderMap map[string]string `json:"headerMap,omitempty" mapstructure:"header_map"`

	// KeyColumns identify duplicate rows. Ignored when empty or when it
	// names the identity field.
	KeyColumns []string `json:"keyColumns,omitempty" mapstructure:"key_columns"`
}

// Batch is the outcome of merging a workbook into a dataset.
type Batch struct {
	Records []*domain.Record
	Columns []string
	Stats   domain.UploadStats
}

// Ingest flattens wb and merges the rows into existing. ts is the batch
// timestamp shared by every generated identity; now stamps the audit
// fields. existing is not modified.
func Ingest(schema domain.Schema, existing []*domain.Record, existingColumns []string, wb *Workbook, opts Options, ts int64, now string) (*Batch, error) {
	rows, sheets := Flatten(wb, opts.HeaderMap)
	batch, err := Merge(schema, existing, existingColumns, rows, opts.KeyColumns, ts, now)
	if err != nil {
		return nil, err
	}
	batch.Stats.SheetsProcessed = sheets
	return batch, nil
}

// Flatten turns every sheet into field-maps tagged with source_sheet.
// Headers are trimmed and renamed; blank headers drop their column; rows
// with no value in any kept column are skipped. It returns the rows and
// the number of sheets that had a header row.
func Flatten(wb *Workbook, headerMap map[string]string) ([]*domain.Record, int) {
	if wb == nil {
		return nil, 0
	}
	var (
		out    []*domain.Record
		sheets int
	)
	for _, sh := range wb.Sheets {
		if len(sh.Rows) == 0 {
			continue
		}
		sheets++
		headers := renameHeaders(sh.Rows[0], headerMap)

		for _, row := range sh.Rows[1:] {
			rec := domain.NewRecord()
			empty := true
			for j, h := range headers {
				if h == "" {
					continue
				}
				var v string
				if j < len(row) {
					v = row[j].Render()
				}
				if v != "" {
					empty = false
				} else if rec.Has(h) {
					continue
				}
				rec.Set(h, v)
			}
			if empty {
				continue
			}
			rec.Set(domain.FieldSourceSheet, sh.Name)
			out = append(out, rec)
		}
	}
	return out, sheets
}

func renameHeaders(row []Cell, headerMap map[string]string) []string {
	headers := make([]string, len(row))
	for i, c := range row {
		h := headerText(c)
		if mapped, ok := headerMap[h]; ok {
			h = strings.TrimSpace(mapped)
		}
		headers[i] = h
	}
	return headers
}

func headerText(c Cell) string {
	if s, ok := c.Value.(string); ok {
		return strings.TrimSpace(s)
	}
	return c.Render()
}

// Merge appends incoming rows to existing. Every incoming row is given a
// generated identity with the shared timestamp ts and a sequence that
// starts after len(existing); rows matching an existing or earlier
// accepted row on every key column are dropped as duplicates. Accepted
// rows get created_at and updated_at set to now.
func Merge(schema domain.Schema, existing []*domain.Record, existingColumns []string, incoming []*domain.Record, keyColumns []string, ts int64, now string) (*Batch, error) {
	field := schema.IdentityField
	ids := identity.Set(field, existing)
	keys := newKeyIndex(keyColumns, field)
	keys.addAll(existing)

	merged := make([]*domain.Record, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	stats := domain.UploadStats{Dataset: schema.Name, TotalRows: len(incoming)}
	seq := len(existing)
	for _, row := range incoming {
		seq++
		id, err := identity.ResolveCollision(schema, identity.Generate(schema, ts, seq), ids, ts, seq)
		if err != nil {
			return nil, err
		}
		stats.IdentitiesGenerated++

		if keys.contains(row) {
			stats.Duplicates++
			continue
		}

		rec := domain.NewRecord(field, id)
		row.Each(func(k string, v any) {
			if k == field || k == domain.FieldCreatedAt || k == domain.FieldUpdatedAt {
				return
			}
			rec.Set(k, v)
		})
		rec.Set(domain.FieldCreatedAt, now)
		rec.Set(domain.FieldUpdatedAt, now)

		ids[id] = struct{}{}
		keys.add(rec)
		merged = append(merged, rec)
		stats.NewRows++
	}

	return &Batch{
		Records: merged,
		Columns: domain.ColumnUnion(field, existingColumns, merged),
		Stats:   stats,
	}, nil
}

// ── Duplicate index ────────────────────────────────────────

// keyIndex is a set of key-column tuples. A nil index never reports a
// duplicate.
type keyIndex struct {
	columns []string
	seen    map[string]struct{}
}

func newKeyIndex(columns []string, identityField string) *keyIndex {
	if len(columns) == 0 {
		return nil
	}
	for _, c := range columns {
		if c == identityField {
			return nil
		}
	}
	return &keyIndex{columns: columns, seen: make(map[string]struct{})}
}

func (k *keyIndex) key(r *domain.Record) string {
	parts := make([]string, len(k.columns))
	for i, c := range k.columns {
		parts[i] = r.String(c)
	}
	return strings.Join(parts, "\x1f")
}

func (k *keyIndex) add(r *domain.Record) {
	if k == nil {
		return
	}
	k.seen[k.key(r)] = struct{}{}
}

func (k *keyIndex) addAll(records []*domain.Record) {
	for _, r := range records {
		k.add(r)
	}
}

func (k *keyIndex) contains(r *domain.Record) bool {
	if k == nil {
		return false
	}
	_, ok := k.seen[k.key(r)]
	return ok
}
