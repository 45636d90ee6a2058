package domain

import (
	"fmt"

	"github.com/spf13/cast"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Audit and provenance fields maintained by the record store and the
// ingestion pipeline. They are ordinary columns once written.
const (
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"
	FieldSourceSheet = "source_sheet"
)

// Record is one dataset row: an insertion-ordered map from column name to a
// scalar value (string or number). The zero value is not usable; build
// records with NewRecord.
type Record struct {
	fields *orderedmap.OrderedMap[string, any]
}

// NewRecord creates a record from alternating key/value arguments.
// It panics if a key is not a string or the argument count is odd.
func NewRecord(kv ...any) *Record {
	if len(kv)%2 != 0 {
		panic("domain.NewRecord: odd number of arguments")
	}
	r := &Record{fields: orderedmap.New[string, any]()}
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("domain.NewRecord: key %v is not a string", kv[i]))
		}
		r.fields.Set(k, kv[i+1])
	}
	return r
}

func (r *Record) init() {
	if r.fields == nil {
		r.fields = orderedmap.New[string, any]()
	}
}

// Get returns the raw value stored under key.
func (r *Record) Get(key string) (any, bool) {
	if r == nil || r.fields == nil {
		return nil, false
	}
	return r.fields.Get(key)
}

// String returns the string form of the value under key, or "" if absent.
func (r *Record) String(key string) string {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return ""
	}
	return cast.ToString(v)
}

// Has reports whether key is present (even with an empty value).
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Set stores value under key. Existing keys keep their position; new keys
// are appended.
func (r *Record) Set(key string, value any) {
	r.init()
	r.fields.Set(key, value)
}

// Delete removes key from the record.
func (r *Record) Delete(key string) {
	if r.fields == nil {
		return
	}
	r.fields.Delete(key)
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil || r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys returns field names in insertion order.
func (r *Record) Keys() []string {
	if r == nil || r.fields == nil {
		return nil
	}
	keys := make([]string, 0, r.fields.Len())
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Each calls fn for every field in order.
func (r *Record) Each(fn func(key string, value any)) {
	if r == nil || r.fields == nil {
		return
	}
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		fn(p.Key, p.Value)
	}
}

// Clone returns a shallow copy; values are scalars so this is a full copy.
func (r *Record) Clone() *Record {
	c := NewRecord()
	r.Each(func(k string, v any) { c.fields.Set(k, v) })
	return c
}

// Merge copies every field of other over r.
func (r *Record) Merge(other *Record) {
	r.init()
	other.Each(func(k string, v any) { r.fields.Set(k, v) })
}

// Map returns the fields as a plain map. Order is lost.
func (r *Record) Map() map[string]any {
	m := make(map[string]any, r.Len())
	r.Each(func(k string, v any) { m[k] = v })
	return m
}

func (r *Record) MarshalJSON() ([]byte, error) {
	r.init()
	return r.fields.MarshalJSON()
}

func (r *Record) UnmarshalJSON(data []byte) error {
	r.fields = orderedmap.New[string, any]()
	return r.fields.UnmarshalJSON(data)
}
