package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"infradesk/internal/domain"
)

func TestColumnUnionIdentityFirst(t *testing.T) {
	records := []*domain.Record{
		domain.NewRecord("title", "Bridge", "id", "ENG-1-1"),
		domain.NewRecord("id", "ENG-1-2", "foo", "x"),
	}
	cols := domain.ColumnUnion("id", []string{"title", "", "amount"}, records)
	assert.Equal(t, []string{"id", "title", "amount", "foo"}, cols)
}

func TestColumnUnionEmpty(t *testing.T) {
	assert.Equal(t, []string{"project_id"}, domain.ColumnUnion("project_id", nil, nil))
}

func TestSanitizeValue(t *testing.T) {
	assert.Equal(t, "a; b; c", domain.SanitizeValue("a, b, c"))
	assert.Equal(t, 10, domain.SanitizeValue(10))
	assert.Nil(t, domain.SanitizeValue(nil))
}
