// Package cli implements the infradesk command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"infradesk/internal/app"
	"infradesk/internal/config"
	"infradesk/internal/logging"
)

// Version is stamped at build time.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
	Verbose    bool

	// Fs overrides the filesystem used for config, datasets and inbox.
	Fs afero.Fs

	app *app.App
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"json", "text"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infradesk",
		Short: "Tabular record store for infrastructure project data",
		Long: `infradesk keeps named datasets of records in delimited files, assigns
every record a stable identity and imports spreadsheets, JSON exports and
database queries into them.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.close()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default "+config.DefaultPath()+")")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "json", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newDatasetsCommand(opts))
	cmd.AddCommand(newRecordsCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newIngestCommand(opts))
	cmd.AddCommand(newSourcesCommand(opts))
	cmd.AddCommand(newRepairCommand(opts))
	cmd.AddCommand(newRunsCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newMCPCommand(opts))

	return cmd
}

// Execute runs the root command with ctx and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	defer opts.close()
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// load builds the App on first use. Commands that never touch data (help,
// version) never open storage.
func (o *RootOptions) load(cmd *cobra.Command) (*app.App, error) {
	if o.app != nil {
		return o.app, nil
	}
	cfg, err := config.Load(o.ConfigPath, o.Fs)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	level := cfg.Log.Level
	if o.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configure logging", err)
	}
	a, err := app.New(cfg, logger, app.Options{Fs: o.Fs})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	o.app = a
	return a, nil
}

func (o *RootOptions) close() error {
	if o.app == nil {
		return nil
	}
	err := o.app.Close()
	o.app = nil
	return err
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
