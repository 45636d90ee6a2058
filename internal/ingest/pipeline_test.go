package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infradesk/internal/domain"
	"infradesk/internal/identity"
	"infradesk/internal/ingest"
	"infradesk/internal/registry"
)

const (
	batchTS  = int64(1700000000000)
	batchNow = "2023-11-14T22:13:20.000Z"
)

func strRow(vals ...string) []ingest.Cell {
	row := make([]ingest.Cell, len(vals))
	for i, v := range vals {
		row[i] = ingest.CellOf(v)
	}
	return row
}

func TestFlatten(t *testing.T) {
	wb := &ingest.Workbook{Sheets: []ingest.Sheet{
		{Name: "Q1", Rows: [][]ingest.Cell{
			strRow(" Project Name ", "", "Site"),
			strRow("Bridge A", "ignored", "North"),
			strRow("", "only-dropped", ""),
			strRow("Tunnel", "x"),
		}},
		{Name: "Empty"},
		{Name: "HeaderOnly", Rows: [][]ingest.Cell{strRow("a")}},
	}}

	rows, sheets := ingest.Flatten(wb, map[string]string{"Project Name": "name"})
	assert.Equal(t, 2, sheets)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"name", "Site", "source_sheet"}, rows[0].Keys())
	assert.Equal(t, "Bridge A", rows[0].String("name"))
	assert.Equal(t, "North", rows[0].String("Site"))
	assert.Equal(t, "Q1", rows[0].String(domain.FieldSourceSheet))

	// Short row: missing cells become empty strings.
	assert.Equal(t, "Tunnel", rows[1].String("name"))
	assert.True(t, rows[1].Has("Site"))
	assert.Equal(t, "", rows[1].String("Site"))
}

func TestFlattenNilAndEmpty(t *testing.T) {
	rows, sheets := ingest.Flatten(nil, nil)
	assert.Empty(t, rows)
	assert.Zero(t, sheets)

	rows, sheets = ingest.Flatten(&ingest.Workbook{}, nil)
	assert.Empty(t, rows)
	assert.Zero(t, sheets)
}

func TestMergeAssignsSequentialIdentities(t *testing.T) {
	schema := registry.Default().Resolve("engineering_projects")
	existing := []*domain.Record{
		domain.NewRecord("project_id", "ENG-1-1", "name", "Old"),
	}
	incoming := []*domain.Record{
		domain.NewRecord("project_id", "caller-supplied", "name", "A"),
		domain.NewRecord("name", "B"),
	}

	batch, err := ingest.Merge(schema, existing, []string{"project_id", "name"}, incoming, nil, batchTS, batchNow)
	require.NoError(t, err)

	require.Len(t, batch.Records, 3)
	assert.Equal(t, "ENG-1700000000000-2", batch.Records[1].String("project_id"))
	assert.Equal(t, "ENG-1700000000000-3", batch.Records[2].String("project_id"))
	assert.Equal(t, batchNow, batch.Records[1].String(domain.FieldCreatedAt))
	assert.Equal(t, batchNow, batch.Records[1].String(domain.FieldUpdatedAt))
	assert.Equal(t, []string{"project_id", "name", "created_at", "updated_at"}, batch.Columns)

	assert.Equal(t, domain.UploadStats{
		Dataset:             "engineering_projects",
		TotalRows:           2,
		NewRows:             2,
		IdentitiesGenerated: 2,
	}, batch.Stats)

	// existing slice is not modified
	assert.Len(t, existing, 1)
}

func TestMergeDuplicateSuppression(t *testing.T) {
	schema := registry.Synthesize("sites")
	incoming := []*domain.Record{
		domain.NewRecord("name", "Pump", "site", "North", "qty", "1"),
		domain.NewRecord("name", "Pump", "site", "North", "qty", "7"),
	}

	batch, err := ingest.Merge(schema, nil, nil, incoming, []string{"name", "site"}, batchTS, batchNow)
	require.NoError(t, err)

	assert.Equal(t, 1, batch.Stats.NewRows)
	assert.Equal(t, 1, batch.Stats.Duplicates)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "1", batch.Records[0].String("qty"))
}

func TestMergeDuplicateAgainstExisting(t *testing.T) {
	schema := registry.Synthesize("sites")
	existing := []*domain.Record{domain.NewRecord("id", "SIT-1-1", "name", "Pump", "site", "North")}
	incoming := []*domain.Record{
		domain.NewRecord("name", "Pump", "site", "North"),
		domain.NewRecord("name", "Pump", "site", "South"),
	}

	batch, err := ingest.Merge(schema, existing, nil, incoming, []string{"name", "site"}, batchTS, batchNow)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Stats.Duplicates)
	assert.Equal(t, 1, batch.Stats.NewRows)
	assert.Len(t, batch.Records, 2)
}

func TestMergeKeyColumnsIncludingIdentityDisableDedupe(t *testing.T) {
	schema := registry.Synthesize("sites")
	incoming := []*domain.Record{
		domain.NewRecord("name", "Pump"),
		domain.NewRecord("name", "Pump"),
	}

	batch, err := ingest.Merge(schema, nil, nil, incoming, []string{"name", "id"}, batchTS, batchNow)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Stats.NewRows)
	assert.Zero(t, batch.Stats.Duplicates)
}

func TestMergeIdentitiesUniqueAgainstExisting(t *testing.T) {
	schema := registry.Synthesize("sites")
	// An existing row already holds the identity the batch would generate first.
	existing := []*domain.Record{domain.NewRecord("id", identity.Generate(schema, batchTS, 2))}
	incoming := []*domain.Record{domain.NewRecord("name", "a"), domain.NewRecord("name", "b")}

	batch, err := ingest.Merge(schema, existing, nil, incoming, nil, batchTS, batchNow)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, r := range batch.Records {
		id := r.String("id")
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate identity %s", id)
		seen[id] = true
	}
}

func TestIngestEmptyWorkbook(t *testing.T) {
	schema := registry.Synthesize("demo")
	batch, err := ingest.Ingest(schema, nil, nil, &ingest.Workbook{Sheets: []ingest.Sheet{{Name: "S1"}}}, ingest.Options{}, batchTS, batchNow)
	require.NoError(t, err)
	assert.Zero(t, batch.Stats.NewRows)
	assert.Zero(t, batch.Stats.SheetsProcessed)
	assert.Equal(t, []string{"id"}, batch.Columns)
}

func TestIngestWorkbook(t *testing.T) {
	schema := registry.Synthesize("demo")
	wb := &ingest.Workbook{Sheets: []ingest.Sheet{
		{Name: "North", Rows: [][]ingest.Cell{
			strRow("Asset", "Site"),
			{ingest.StringCell("Pump, main"), ingest.StringCell("N1")},
		}},
		{Name: "South", Rows: [][]ingest.Cell{
			strRow("Asset", "Site", "Cost"),
			{ingest.StringCell("Valve"), ingest.StringCell("S1"), ingest.NumberCell(3.25)},
		}},
	}}

	batch, err := ingest.Ingest(schema, nil, nil, wb, ingest.Options{HeaderMap: map[string]string{"Asset": "asset"}}, batchTS, batchNow)
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Stats.SheetsProcessed)
	assert.Equal(t, 2, batch.Stats.TotalRows)
	assert.Equal(t, []string{"id", "asset", "Site", "source_sheet", "created_at", "updated_at", "Cost"}, batch.Columns)
	assert.Equal(t, "Pump; main", batch.Records[0].String("asset"))
	assert.Equal(t, "3.25", batch.Records[1].String("Cost"))
	assert.Equal(t, "South", batch.Records[1].String("source_sheet"))
}
