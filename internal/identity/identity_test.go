package identity_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infradesk/internal/domain"
	"infradesk/internal/identity"
)

var engSchema = domain.Schema{
	Name:             "engineering_projects",
	IdentityField:    "project_id",
	IdentityPrefix:   "ENG",
	IdentityTemplate: "{prefix}-{timestamp}-{sequence}",
}

func TestNeedsReassignment(t *testing.T) {
	cases := []struct {
		in   any
		want bool
	}{
		{nil, true},
		{"", true},
		{"   ", true},
		{"7", true},
		{"9999", true},
		{"ENG-1690000000000-3", false},
		{"15000", false},
		{"10000", false},
		{7, true},
		{float64(12), true},
		{float64(20000), false},
		{"A-1", false},
		{-5, false},
		{"-5", false},
		{int64(42), true},
		{uint16(9999), true},
		{float64(7.5), true},
		{"7.5", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, identity.NeedsReassignment(c.in), "value %#v", c.in)
	}
}

func TestGenerate(t *testing.T) {
	assert.Equal(t, "ENG-1690000000000-3", identity.Generate(engSchema, 1690000000000, 3))
	assert.Equal(t, identity.Generate(engSchema, 5, 1), identity.Generate(engSchema, 5, 1))

	custom := domain.Schema{IdentityPrefix: "RD", IdentityTemplate: "{prefix}/{sequence}/{timestamp}"}
	assert.Equal(t, "RD/4/99", identity.Generate(custom, 99, 4))
}

func TestResolveCollision_NoCollision(t *testing.T) {
	id, err := identity.ResolveCollision(engSchema, "ENG-10-1", map[string]struct{}{"ENG-11-1": {}}, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, "ENG-10-1", id)
}

func TestResolveCollision_BumpsTimestamp(t *testing.T) {
	existing := map[string]struct{}{"ENG-10-1": {}, "ENG-11-1": {}}
	id, err := identity.ResolveCollision(engSchema, "ENG-10-1", existing, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, "ENG-12-1", id)
}

func TestResolveCollision_Exhausted(t *testing.T) {
	existing := map[string]struct{}{}
	for ts := int64(10); ts <= 10+identity.MaxCollisionRetries; ts++ {
		existing[identity.Generate(engSchema, ts, 1)] = struct{}{}
	}
	_, err := identity.ResolveCollision(engSchema, "ENG-10-1", existing, 10, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIdentityExhausted))
}

func TestRepair(t *testing.T) {
	records := []*domain.Record{
		domain.NewRecord("project_id", "1", "name", "a"),
		domain.NewRecord("project_id", "2", "name", "b"),
		domain.NewRecord("project_id", "ENG-123-1", "name", "c"),
	}
	changed, err := identity.Repair(engSchema, records, 500, "2024-01-01T00:00:00.000Z")
	require.NoError(t, err)

	assert.Equal(t, 2, changed)
	assert.Equal(t, "ENG-500-1", records[0].String("project_id"))
	assert.Equal(t, "ENG-500-2", records[1].String("project_id"))
	assert.Equal(t, "ENG-123-1", records[2].String("project_id"))
	assert.Equal(t, "2024-01-01T00:00:00.000Z", records[0].String(domain.FieldUpdatedAt))
	assert.False(t, records[2].Has(domain.FieldUpdatedAt))
	for _, r := range records {
		assert.False(t, identity.NeedsReassignment(r.String("project_id")))
	}
}

func TestRepair_MissingFieldGoesFirst(t *testing.T) {
	records := []*domain.Record{domain.NewRecord("name", "a")}
	changed, err := identity.Repair(engSchema, records, 7, "now")
	require.NoError(t, err)

	assert.Equal(t, 1, changed)
	assert.Equal(t, []string{"project_id", "name", domain.FieldUpdatedAt}, records[0].Keys())
}
