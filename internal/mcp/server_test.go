package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infradesk/internal/domain"
	"infradesk/internal/ingest"
	_ "infradesk/internal/ingest/sources"
	"infradesk/internal/registry"
	"infradesk/internal/service"
	"infradesk/internal/storage"
)

var fixedNow = time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

type harness struct {
	srv *Server
	fs  afero.Fs
}

func newHarness(t *testing.T, allowDestructive bool) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	blobs, err := storage.NewFSBlobStore(fs, "/data")
	require.NoError(t, err)
	clock := domain.ClockFunc(func() time.Time { return fixedNow })
	records := service.NewRecordService(storage.NewTableCodec(blobs, nil), registry.Default(), clock, nil, nil)
	ingestSvc := service.NewIngestService(records, fs, nil, map[string]ingest.Options{}, nil)
	return &harness{
		srv: New(Deps{Records: records, Ingest: ingestSvc, AllowDestructive: allowDestructive}, "test"),
		fs:  fs,
	}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestTools_InsertGetList(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	res, err := h.srv.handleInsertRecord(ctx, call(map[string]any{
		"dataset":    "demo",
		"fieldsJSON": `{"title":"Bridge A","amount":"10"}`,
	}))
	require.NoError(t, err)
	var inserted map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &inserted))
	assert.Equal(t, "DEM-1700000000000-1", inserted["id"])

	res, err = h.srv.handleGetRecord(ctx, call(map[string]any{"dataset": "demo", "identity": "DEM-1700000000000-1"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Bridge A")

	res, err = h.srv.handleGetRecord(ctx, call(map[string]any{"dataset": "demo", "position": float64(0)}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Bridge A")

	res, err = h.srv.handleListRecords(ctx, call(map[string]any{"dataset": "demo", "search": "bridge"}))
	require.NoError(t, err)
	var list service.ListResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, []string{"id", "title", "amount", "created_at", "updated_at"}, list.Columns)
}

func TestTools_ListRecordsUnboundedByDefault(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	var b strings.Builder
	b.WriteString("id,title\n")
	for i := 1; i <= 60; i++ {
		fmt.Fprintf(&b, "DEM-1-%d,row %d\n", i, i)
	}
	require.NoError(t, afero.WriteFile(h.fs, "/data/demo.csv", []byte(b.String()), 0o644))

	res, err := h.srv.handleListRecords(ctx, call(map[string]any{"dataset": "demo"}))
	require.NoError(t, err)
	var list service.ListResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &list))
	assert.Equal(t, 60, list.Total)
	assert.Len(t, list.Rows, 60)

	res, err = h.srv.handleListRecords(ctx, call(map[string]any{"dataset": "demo", "page": float64(2), "pageSize": float64(25)}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &list))
	assert.Len(t, list.Rows, 25)
	assert.Equal(t, "DEM-1-26", list.Rows[0].String("id"))

	res, err = h.srv.handleListRecords(ctx, call(map[string]any{"dataset": "demo", "page": float64(4611686018427387904), "pageSize": float64(4)}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &list))
	assert.Equal(t, 60, list.Total)
	assert.Empty(t, list.Rows)
}

func TestTools_UpdateAndExport(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.srv.handleInsertRecord(ctx, call(map[string]any{"dataset": "demo", "fieldsJSON": `{"title":"A"}`}))
	require.NoError(t, err)

	_, err = h.srv.handleUpdateRecord(ctx, call(map[string]any{
		"dataset":    "demo",
		"position":   float64(0),
		"fieldsJSON": `{"title":"B","id":"hijack"}`,
	}))
	require.NoError(t, err)

	res, err := h.srv.handleExportDataset(ctx, call(map[string]any{"dataset": "demo"}))
	require.NoError(t, err)
	assert.Equal(t,
		"id,title,created_at,updated_at\nDEM-1700000000000-1,B,2023-11-14T22:13:20.000Z,2023-11-14T22:13:20.000Z\n",
		resultText(t, res))
}

func TestTools_ArgumentErrors(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.srv.handleListRecords(ctx, call(map[string]any{}))
	assert.Error(t, err)

	_, err = h.srv.handleGetRecord(ctx, call(map[string]any{"dataset": "demo"}))
	assert.Error(t, err)

	_, err = h.srv.handleInsertRecord(ctx, call(map[string]any{"dataset": "demo", "fieldsJSON": "[1,2"}))
	assert.Error(t, err)

	_, err = h.srv.handleGetRecord(ctx, call(map[string]any{"dataset": "demo", "position": float64(3)}))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTools_DestructiveRefusedByDefault(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	_, err := h.srv.handleInsertRecord(ctx, call(map[string]any{"dataset": "demo", "fieldsJSON": `{"title":"A"}`}))
	require.NoError(t, err)

	res, err := h.srv.handleDeleteRecord(ctx, call(map[string]any{"dataset": "demo", "position": float64(0)}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "rejected")

	res, err = h.srv.handleDeleteDataset(ctx, call(map[string]any{"dataset": "demo"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "rejected")

	got, err := h.srv.records.List(ctx, "demo", service.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Total)
}

func TestTools_DestructiveAllowed(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	_, err := h.srv.handleInsertRecord(ctx, call(map[string]any{"dataset": "demo", "fieldsJSON": `{"title":"A"}`}))
	require.NoError(t, err)
	_, err = h.srv.handleInsertRecord(ctx, call(map[string]any{"dataset": "demo", "fieldsJSON": `{"title":"B"}`}))
	require.NoError(t, err)

	_, err = h.srv.handleDeleteRecord(ctx, call(map[string]any{"dataset": "demo", "identity": "DEM-1700000000000-1"}))
	require.NoError(t, err)

	got, err := h.srv.records.List(ctx, "demo", service.ListQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, got.Total)
	assert.Equal(t, "B", got.Rows[0].String("title"))

	res, err := h.srv.handleDeleteDataset(ctx, call(map[string]any{"dataset": "demo"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "deleted")
	_, err = h.srv.records.GetDataset(ctx, "demo")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTools_IngestFile(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(h.fs, "/in/parts.csv", []byte("Part,Qty\nbolt,1\nbolt,2\n"), 0o644))

	res, err := h.srv.handleIngestFile(ctx, call(map[string]any{
		"dataset":       "parts",
		"path":          "/in/parts.csv",
		"headerMapJSON": `{"Part":"name"}`,
		"keyColumns":    []any{"name"},
	}))
	require.NoError(t, err)
	var stats domain.UploadStats
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &stats))
	assert.Equal(t, 2, stats.TotalRows)
	assert.Equal(t, 1, stats.NewRows)
	assert.Equal(t, 1, stats.Duplicates)

	_, err = h.srv.handleIngestFile(ctx, call(map[string]any{"dataset": "parts"}))
	assert.Error(t, err)

	res, err = h.srv.handleListIngestSources(ctx, call(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"xlsx"`)

	res, err = h.srv.handleListIngestRuns(ctx, call(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", resultText(t, res))
}

func TestTools_RepairIdentities(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(h.fs, "/data/demo.csv", []byte("id,title\n,A\n"), 0o644))

	res, err := h.srv.handleRepairIdentities(ctx, call(map[string]any{"dataset": "demo"}))
	require.NoError(t, err)
	var out domain.RepairResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, 1, out.Updated)

	res, err = h.srv.handleRepairIdentities(ctx, call(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"dataset": "demo"`)
}

func TestResources(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	_, err := h.srv.handleInsertRecord(ctx, call(map[string]any{"dataset": "demo", "fieldsJSON": `{"title":"A"}`}))
	require.NoError(t, err)

	var req mcp.ReadResourceRequest
	req.Params.URI = datasetsURI
	contents, err := h.srv.handleDatasetsResource(ctx, req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, `"recordCount": 1`)

	req.Params.URI = "infradesk://datasets/engineering_projects/schema"
	contents, err = h.srv.handleDatasetSchemaResource(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, `"identityField": "project_id"`)

	req.Params.URI = "infradesk://datasets/a/b/schema"
	_, err = h.srv.handleDatasetSchemaResource(ctx, req)
	assert.Error(t, err)
}

func TestDatasetFromURI(t *testing.T) {
	assert.Equal(t, "demo", datasetFromURI("infradesk://datasets/demo/schema"))
	assert.Equal(t, "", datasetFromURI("infradesk://datasets/demo"))
	assert.Equal(t, "", datasetFromURI("notes://datasets/demo/schema"))
}

func TestApprover(t *testing.T) {
	ctx := context.Background()
	ok, err := NewApprover(true, nil).Request(ctx, "delete_record", "x")
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = NewApprover(false, nil).Request(ctx, "delete_record", "x")
	assert.False(t, ok)
	assert.Error(t, err)
}
