// Package registry maps dataset names to their identity and column policy.
package registry

import (
	"strings"
	"sync"

	"infradesk/internal/domain"
)

// Registry resolves a Schema for any dataset name. Registered entries win;
// everything else gets a synthesized schema.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]domain.Schema
}

// New creates a registry holding the given schemas.
func New(schemas ...domain.Schema) *Registry {
	r := &Registry{schemas: make(map[string]domain.Schema, len(schemas))}
	for _, s := range schemas {
		r.Register(s)
	}
	return r
}

// Default returns a registry preloaded with the project datasets.
func Default() *Registry {
	return New(Builtin()...)
}

// Builtin lists the schemas registered out of the box.
func Builtin() []domain.Schema {
	return []domain.Schema{
		{
			Name:             "engineering_projects",
			DisplayName:      "Engineering Projects",
			IdentityField:    "project_id",
			IdentityPrefix:   "ENG",
			IdentityTemplate: domain.DefaultIdentityTemplate,
			Columns: []string{
				"project_id", "project_name", "location", "district", "contractor",
				"contract_amount", "status", "start_date", "target_completion",
			},
		},
		{
			Name:             "procurement",
			DisplayName:      "Procurement Notices",
			IdentityField:    "reference_no",
			IdentityPrefix:   "PRC",
			IdentityTemplate: domain.DefaultIdentityTemplate,
			Columns: []string{
				"reference_no", "title", "procuring_entity", "approved_budget",
				"mode", "published_date", "closing_date",
			},
		},
		{
			Name:             "contracts",
			DisplayName:      "Awarded Contracts",
			IdentityField:    "contract_id",
			IdentityPrefix:   "CON",
			IdentityTemplate: domain.DefaultIdentityTemplate,
			Columns: []string{
				"contract_id", "project_name", "contractor", "award_amount",
				"award_date", "duration_days",
			},
		},
	}
}

// Register adds or replaces the schema for s.Name. Blank policy fields are
// filled from the synthesized defaults.
func (r *Registry) Register(s domain.Schema) {
	s = withDefaults(s)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Name] = s
}

// Resolve returns the schema for name. It never fails.
func (r *Registry) Resolve(name string) domain.Schema {
	r.mu.RLock()
	s, ok := r.schemas[name]
	r.mu.RUnlock()
	if ok {
		return s
	}
	return Synthesize(name)
}

// Names returns the registered dataset names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		names = append(names, n)
	}
	return names
}

// Synthesize builds the schema used for unregistered datasets: the prefix is
// the upper-cased first three characters of the name and the identity
// field is "id".
func Synthesize(name string) domain.Schema {
	return withDefaults(domain.Schema{Name: name})
}

func withDefaults(s domain.Schema) domain.Schema {
	if s.DisplayName == "" {
		s.DisplayName = s.Name
	}
	if s.IdentityField == "" {
		s.IdentityField = domain.DefaultIdentityField
	}
	if s.IdentityPrefix == "" {
		s.IdentityPrefix = prefixOf(s.Name)
	}
	if s.IdentityTemplate == "" {
		s.IdentityTemplate = domain.DefaultIdentityTemplate
	}
	return s
}

func prefixOf(name string) string {
	runes := []rune(name)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return strings.ToUpper(string(runes))
}
