package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newWatchCommand creates the watch command.
func newWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Ingest files dropped into the inbox and run scheduled repairs",
		Long: `Watch ingest.inbox for files named <dataset>.<ext> or
<dataset>__<anything>.<ext>. Each file is imported with the dataset's ingest
profile and moved to processed/ or failed/. When maintenance.repair_schedule
is set, identities are repaired on that cron schedule. Runs until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			cfg := a.Config.Watch()
			if cfg.Inbox == "" && cfg.RepairSchedule == "" {
				return WrapExitError(ExitCommandError, "nothing to watch",
					fmt.Errorf("set ingest.inbox or maintenance.repair_schedule"))
			}

			w := a.NewWatchService()
			if err := w.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			a.Logger.Info("shutting down")
			err = a.Shutdown(w)
			opts.app = nil
			return err
		},
	}
}

// newMCPCommand creates the mcp command.
func newMCPCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the record store to AI agents over MCP (stdio)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return a.ServeMCP(cmd.Context(), Version)
		},
	}
}
