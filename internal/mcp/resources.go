package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	datasetsURI       = "infradesk://datasets"
	datasetSchemaTmpl = "infradesk://datasets/{name}/schema"
)

func (s *Server) registerResources() {
	// ── infradesk://datasets ───────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		datasetsURI,
		"All Datasets",
		mcp.WithMIMEType("application/json"),
	), s.handleDatasetsResource)

	// ── infradesk://datasets/{name}/schema ─────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			datasetSchemaTmpl,
			"Dataset Schema",
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleDatasetSchemaResource,
	)
}

func (s *Server) handleDatasetsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	datasets, err := s.records.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(datasets, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      datasetsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleDatasetSchemaResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	name := datasetFromURI(uri)
	if name == "" {
		return nil, fmt.Errorf("could not extract dataset from URI: %s", uri)
	}

	schema := s.records.Schema(name)
	payload := map[string]any{"schema": schema}
	if info, err := s.records.GetDataset(ctx, name); err == nil {
		payload["columns"] = info.Columns
		payload["recordCount"] = info.RecordCount
	}

	data, _ := json.MarshalIndent(payload, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// datasetFromURI extracts the dataset from "infradesk://datasets/{name}/schema".
func datasetFromURI(uri string) string {
	const prefix = "infradesk://datasets/"
	const suffix = "/schema"
	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	name := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(name, "/") {
		return ""
	}
	return name
}
