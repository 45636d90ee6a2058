package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"

	"infradesk/internal/ingest"
)

// ── HTTP Source ─────────────────────────────────────────────
// Fetches a JSON document from a REST endpoint and reads it like a JSON
// file: an array becomes one sheet, an object of arrays one sheet per key.

const maxHTTPBody = 64 << 20

type httpSource struct {
	client *http.Client
}

func init() { ingest.RegisterSource(&httpSource{client: &http.Client{Timeout: 30 * time.Second}}) }

func (s *httpSource) Spec() ingest.SourceSpec {
	return ingest.SourceSpec{
		Type:  "http",
		Label: "HTTP API",
		ConfigFields: []ingest.ConfigField{
			{Key: "url", Label: "URL", Required: true, Help: "Full URL to fetch (e.g., https://api.example.com/projects)"},
			{Key: "method", Label: "Method", Default: "GET", Help: "GET or POST"},
			{Key: "headers", Label: "Headers", Help: "JSON object of headers (e.g., {\"Authorization\": \"Bearer xxx\"})"},
			{Key: "body", Label: "Body", Help: "Request body (for POST)"},
			{Key: "dataPath", Label: "Data Path", Help: "Dot-separated path to the data in the response (e.g., 'data.items')"},
			{Key: "sheet", Label: "Sheet", Help: "Sheet name for a top-level array (default: last URL path segment)"},
		},
	}
}

func (s *httpSource) Read(ctx context.Context, in ingest.Input) (*ingest.Workbook, error) {
	url := in.Config.String("url")
	if url == "" {
		return nil, fmt.Errorf("http source: url is required")
	}
	method := strings.ToUpper(in.Config.String("method"))
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body := in.Config.String("body"); body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if err := setHeaders(req, in.Config["headers"]); err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	name := in.Config.String("sheet")
	if name == "" {
		name = lastSegment(url)
	}
	return (&jsonSource{}).Read(ctx, ingest.Input{
		Name:   name,
		Reader: bytes.NewReader(data),
		Config: ingest.SourceConfig{"dataPath": in.Config["dataPath"]},
	})
}

// setHeaders applies headers given as a JSON object string or a map.
func setHeaders(req *http.Request, raw any) error {
	var headers map[string]string
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(v), &headers); err != nil {
			return fmt.Errorf("parse headers: %w", err)
		}
	default:
		m, err := cast.ToStringMapStringE(v)
		if err != nil {
			return fmt.Errorf("parse headers: %w", err)
		}
		headers = m
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return nil
}

func lastSegment(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		url = url[i+1:]
	}
	if url == "" {
		return "response"
	}
	return url
}
