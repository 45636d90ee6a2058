package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"infradesk/internal/ingest"
	"infradesk/internal/service"
)

// newIngestCommand creates the ingest command.
func newIngestCommand(opts *RootOptions) *cobra.Command {
	var (
		sourceType string
		config     []string
		headers    []string
		keys       []string
		noProfile  bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <dataset> [file]",
		Short: "Import a workbook or database query into a dataset",
		Long: `Import every sheet of a workbook into a dataset. The source type is
taken from the file extension unless --source is given; a database source
takes no file:

  infradesk ingest projects projects.xlsx --key project_name
  infradesk ingest crm_accounts --source database --config connection=crm --config "query=SELECT * FROM accounts"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.IngestRequest{Dataset: args[0], SourceType: sourceType}
			if len(args) == 2 {
				req.Path = args[1]
			}
			if req.Path == "" && req.SourceType == "" {
				return fmt.Errorf("a file or --source is required")
			}

			cfg, err := parsePairs("--config", config)
			if err != nil {
				return err
			}
			if len(cfg) > 0 {
				req.Config = ingest.SourceConfig{}
				for k, v := range cfg {
					req.Config[k] = v
				}
			}

			a, err := opts.load(cmd)
			if err != nil {
				return err
			}

			if len(headers) > 0 || len(keys) > 0 || noProfile {
				o := ingest.Options{}
				if !noProfile {
					o = a.Ingest.Profile(req.Dataset)
				}
				if len(headers) > 0 {
					if o.HeaderMap, err = parsePairs("--header", headers); err != nil {
						return err
					}
				}
				if len(keys) > 0 {
					o.KeyColumns = keys
				}
				req.Options = &o
			}

			stats, err := a.Ingest.Ingest(cmd.Context(), req)
			if err != nil {
				return err
			}
			return opts.formatter(cmd).Result(stats, func(w io.Writer) error {
				return Table(w, []string{"DATASET", "SHEETS", "ROWS", "NEW", "DUPLICATES", "IDENTITIES"}, [][]string{{
					stats.Dataset,
					strconv.Itoa(stats.SheetsProcessed),
					strconv.Itoa(stats.TotalRows),
					strconv.Itoa(stats.NewRows),
					strconv.Itoa(stats.Duplicates),
					strconv.Itoa(stats.IdentitiesGenerated),
				}})
			})
		},
	}
	cmd.Flags().StringVar(&sourceType, "source", "", "source type (see `infradesk sources`)")
	cmd.Flags().StringArrayVar(&config, "config", nil, "source setting key=value (repeatable)")
	cmd.Flags().StringArrayVar(&headers, "header", nil, "header rename From=to (repeatable, replaces the profile map)")
	cmd.Flags().StringSliceVar(&keys, "key", nil, "duplicate-detection columns (replaces the profile key columns)")
	cmd.Flags().BoolVar(&noProfile, "no-profile", false, "ignore the configured ingest profile")
	return cmd
}

// newSourcesCommand creates the sources command.
func newSourcesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List workbook source types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			specs := a.Ingest.ListSources()
			return opts.formatter(cmd).Result(specs, func(w io.Writer) error {
				rows := make([][]string, len(specs))
				for i, s := range specs {
					fields := make([]string, len(s.ConfigFields))
					for j, f := range s.ConfigFields {
						fields[j] = f.Key
					}
					rows[i] = []string{s.Type, s.Label, strings.Join(s.Extensions, ","), strings.Join(fields, ",")}
				}
				return Table(w, []string{"TYPE", "LABEL", "EXTENSIONS", "CONFIG"}, rows)
			})
		},
	}
}

func parsePairs(flag string, pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%s %q: want key=value", flag, p)
		}
		out[k] = v
	}
	return out, nil
}
