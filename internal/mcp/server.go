package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"infradesk/internal/logging"
	"infradesk/internal/service"
)

// Server is the MCP server for infradesk.
// It exposes dataset tools, resources and prompts so AI agents can read and
// maintain the record store.
type Server struct {
	mcp      *server.MCPServer
	approval Approver
	log      *logrus.Entry

	// Services (injected from app layer)
	records  *service.RecordService
	ingest   *service.IngestService
	database *service.DatabaseService
}

// Deps holds all dependencies passed from the app layer to the MCP server.
type Deps struct {
	Records  *service.RecordService
	Ingest   *service.IngestService
	Database *service.DatabaseService // optional

	// AllowDestructive lets delete tools run without refusal.
	AllowDestructive bool
	Log              *logrus.Entry
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps, version string) *Server {
	log := logging.OrDiscard(deps.Log)
	s := &Server{
		approval: NewApprover(deps.AllowDestructive, log),
		log:      log,
		records:  deps.Records,
		ingest:   deps.Ingest,
		database: deps.Database,
	}

	s.mcp = server.NewMCPServer(
		"infradesk-mcp",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerRecordTools()
	s.registerIngestTools()
	if s.database != nil {
		s.registerDatabaseTools()
	}
	s.registerResources()
	s.registerPrompts()

	return s
}

// Emitter returns an EventEmitter that forwards dataset events to every
// connected client as notifications.
func (s *Server) Emitter() service.EventEmitter {
	return &notifier{mcp: s.mcp}
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(b bool) *bool { return &b }

// requireDataset returns the dataset argument or an error.
func requireDataset(req mcp.CallToolRequest) (string, error) {
	dataset := req.GetString("dataset", "")
	if dataset == "" {
		return "", fmt.Errorf("dataset is required")
	}
	return dataset, nil
}

// ── Notifications ──────────────────────────────────────────

// notifier adapts the MCP server to service.EventEmitter.
type notifier struct {
	mcp *server.MCPServer
}

func (n *notifier) Emit(_ context.Context, event string, data any) {
	params := map[string]any{"event": event}
	switch v := data.(type) {
	case map[string]any:
		for k, val := range v {
			params[k] = val
		}
	default:
		params["data"] = v
	}
	n.mcp.SendNotificationToAllClients("notifications/infradesk/"+event, params)
}
