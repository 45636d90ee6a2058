package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infradesk/internal/domain"
)

func TestRecord_KeepsInsertionOrder(t *testing.T) {
	r := domain.NewRecord("title", "Bridge A", "amount", 10)
	r.Set("site", "North")
	r.Set("title", "Bridge B")

	assert.Equal(t, []string{"title", "amount", "site"}, r.Keys())
	assert.Equal(t, "Bridge B", r.String("title"))
	assert.Equal(t, "10", r.String("amount"))
	assert.Equal(t, "", r.String("missing"))
}

func TestRecord_JSONPreservesOrder(t *testing.T) {
	var r domain.Record
	require.NoError(t, json.Unmarshal([]byte(`{"z":"1","a":2,"m":"x"}`), &r))
	assert.Equal(t, []string{"z", "a", "m"}, r.Keys())

	out, err := json.Marshal(&r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"z":"1","a":2,"m":"x"}`, string(out))

	var back domain.Record
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, []string{"z", "a", "m"}, back.Keys())
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	r := domain.NewRecord("id", "X")
	c := r.Clone()
	c.Set("id", "Y")
	c.Set("extra", "1")

	assert.Equal(t, "X", r.String("id"))
	assert.False(t, r.Has("extra"))
}

func TestRecord_Merge(t *testing.T) {
	r := domain.NewRecord("id", "X", "title", "old")
	r.Merge(domain.NewRecord("title", "new", "foo", "bar"))

	assert.Equal(t, []string{"id", "title", "foo"}, r.Keys())
	assert.Equal(t, "new", r.String("title"))
}
