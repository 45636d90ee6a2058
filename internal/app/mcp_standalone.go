package app

import (
	"context"

	mcpserver "infradesk/internal/mcp"
	"infradesk/internal/logging"
)

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects.
// When the inbox or a repair schedule is configured the watcher runs
// alongside it.
func (a *App) ServeMCP(ctx context.Context, version string) error {
	srv := mcpserver.New(mcpserver.Deps{
		Records:          a.Records,
		Ingest:           a.Ingest,
		Database:         a.Database,
		AllowDestructive: a.Config.MCP.AllowDestructive,
		Log:              logging.Component(a.Logger, "mcp"),
	}, version)
	a.SetEmitter(srv.Emitter())
	defer a.SetEmitter(nil)

	watch := a.NewWatchService()
	if err := watch.Start(ctx); err != nil {
		return err
	}
	defer func() {
		watch.Stop()
		watch.Wait(context.Background())
	}()

	return srv.ServeStdio()
}
