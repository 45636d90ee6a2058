// Package identity decides when a record needs a new identity and derives
// identities from a schema template.
package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"infradesk/internal/domain"
)

const (
	// ReassignThreshold is the bound below which purely numeric identities
	// are treated as placeholders.
	ReassignThreshold = 10000

	// MaxCollisionRetries caps ResolveCollision.
	MaxCollisionRetries = 1000
)

var numericRe = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// NeedsReassignment reports whether v is empty, absent or a short legacy
// numeric placeholder (below ReassignThreshold).
func NeedsReassignment(v any) bool {
	if v == nil {
		return true
	}
	s := strings.TrimSpace(cast.ToString(v))
	if s == "" {
		return true
	}
	if !numericRe.MatchString(s) {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f < ReassignThreshold
}

// Generate substitutes the prefix, timestamp and sequence into the schema's
// identity template. It is a pure function.
func Generate(s domain.Schema, timestamp int64, sequence int) string {
	tmpl := s.IdentityTemplate
	if tmpl == "" {
		tmpl = domain.DefaultIdentityTemplate
	}
	return strings.NewReplacer(
		domain.PlaceholderPrefix, s.IdentityPrefix,
		domain.PlaceholderTimestamp, strconv.FormatInt(timestamp, 10),
		domain.PlaceholderSequence, strconv.Itoa(sequence),
	).Replace(tmpl)
}

// ResolveCollision returns candidate if it is not in existing. Otherwise it
// regenerates with timestamp+1, timestamp+2, ... keeping sequence, and gives
// up with ErrIdentityExhausted after MaxCollisionRetries attempts.
func ResolveCollision(s domain.Schema, candidate string, existing map[string]struct{}, timestamp int64, sequence int) (string, error) {
	if _, taken := existing[candidate]; !taken {
		return candidate, nil
	}
	for offset := int64(1); offset <= MaxCollisionRetries; offset++ {
		id := Generate(s, timestamp+offset, sequence)
		if _, taken := existing[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts", domain.ErrIdentityExhausted, candidate, MaxCollisionRetries)
}

// Set collects the identity values of records.
func Set(field string, records []*domain.Record) map[string]struct{} {
	ids := make(map[string]struct{}, len(records))
	for _, r := range records {
		if v := r.String(field); v != "" {
			ids[v] = struct{}{}
		}
	}
	return ids
}

// Repair assigns a fresh identity to every record whose identity needs
// reassignment, using its 1-based position as the sequence, and refreshes
// its updated_at to now. Records that already have an acceptable identity
// are left untouched. It returns the number of records changed.
func Repair(s domain.Schema, records []*domain.Record, timestamp int64, now string) (int, error) {
	existing := Set(s.IdentityField, records)
	changed := 0
	for i, r := range records {
		v, _ := r.Get(s.IdentityField)
		if !NeedsReassignment(v) {
			continue
		}
		id, err := ResolveCollision(s, Generate(s, timestamp, i+1), existing, timestamp, i+1)
		if err != nil {
			return changed, err
		}
		existing[id] = struct{}{}
		setIdentity(r, s.IdentityField, id)
		r.Set(domain.FieldUpdatedAt, now)
		changed++
	}
	return changed, nil
}

// setIdentity stores id, moving the identity field to the front when it
// was absent so rows read naturally.
func setIdentity(r *domain.Record, field, id string) {
	if r.Has(field) {
		r.Set(field, id)
		return
	}
	rest := r.Clone()
	for _, k := range r.Keys() {
		r.Delete(k)
	}
	r.Set(field, id)
	r.Merge(rest)
}
