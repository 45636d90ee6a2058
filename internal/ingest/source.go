package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cast"
)

// ── Source ──────────────────────────────────────────────────
// A Source turns some input into a Workbook. Implementations live in
// ingest/sources/, one file per source type.

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// String returns the config value for key as a string.
func (c SourceConfig) String(key string) string {
	return strings.TrimSpace(cast.ToString(c[key]))
}

// Bool returns the config value for key, or def when unset.
func (c SourceConfig) Bool(key string, def bool) bool {
	v, ok := c[key]
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// Int returns the config value for key, or def when unset or invalid.
func (c SourceConfig) Int(key string, def int) int {
	v, ok := c[key]
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

// ConfigField describes a single configuration input for a source.
type ConfigField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Help     string `json:"help,omitempty"`
}

// SourceSpec describes a source type: its label, the file extensions it
// claims and its config fields.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	Extensions   []string      `json:"extensions,omitempty"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Input is what a Source reads. File-backed sources consume Reader and use
// Name for the sheet name; query-backed sources use Config only.
type Input struct {
	Name   string
	Reader io.Reader
	Config SourceConfig
}

// Source is the interface every workbook source must implement.
type Source interface {
	// Spec returns metadata about this source type.
	Spec() SourceSpec

	// Read parses the input into a workbook.
	Read(ctx context.Context, in Input) (*Workbook, error)
}

// ── Source Registry ────────────────────────────────────────
// File sources register themselves via init(); sources that need runtime
// collaborators are registered by the app at startup.

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource registers a source by its spec type, replacing any
// previous registration of the same type.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Spec().Type] = s
}

// GetSource returns a registered source by type, or an error if not found.
func GetSource(typ string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return s, nil
}

// SourceForPath returns the source claiming path's extension.
func SourceForPath(path string) (Source, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, s := range registry {
		for _, e := range s.Spec().Extensions {
			if e == ext {
				return s, nil
			}
		}
	}
	return nil, fmt.Errorf("no source handles %q files", ext)
}

// ListSources returns the specs of all registered sources sorted by type.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]SourceSpec, 0, len(registry))
	for _, s := range registry {
		specs = append(specs, s.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}

// SheetName derives a sheet name from a file name: base name without
// extension.
func SheetName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
