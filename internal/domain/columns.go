package domain

import "strings"

// ColumnUnion returns the identity field followed by the columns of seed
// and then every field seen across records, each once, in first-seen order.
// Blank names are skipped.
func ColumnUnion(identityField string, seed []string, records []*Record) []string {
	seen := map[string]bool{identityField: true}
	cols := []string{identityField}
	add := func(c string) {
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		cols = append(cols, c)
	}
	for _, c := range seed {
		add(c)
	}
	for _, r := range records {
		for _, k := range r.Keys() {
			add(k)
		}
	}
	return cols
}

// SanitizeValue replaces literal commas in string values with semicolons.
// Other values pass through.
func SanitizeValue(v any) any {
	if s, ok := v.(string); ok {
		return strings.ReplaceAll(s, ",", ";")
	}
	return v
}
