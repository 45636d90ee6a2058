package cli

import (
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"infradesk/internal/domain"
)

// newRepairCommand creates the repair command.
func newRepairCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair [dataset]",
		Short: "Fill missing or malformed identities (all datasets when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			var results []domain.RepairResult
			if len(args) == 1 {
				r, err := a.Records.RepairIdentities(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				results = []domain.RepairResult{*r}
			} else if results, err = a.Records.RepairAll(cmd.Context()); err != nil {
				return err
			}
			return opts.formatter(cmd).Result(results, func(w io.Writer) error {
				rows := make([][]string, len(results))
				for i, r := range results {
					rows[i] = []string{r.Dataset, strconv.Itoa(r.Updated), strconv.Itoa(r.Total)}
				}
				return Table(w, []string{"DATASET", "UPDATED", "TOTAL"}, rows)
			})
		},
	}
}

// newRunsCommand creates the runs command.
func newRunsCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [dataset]",
		Short: "Show the ingestion run log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			var dataset string
			if len(args) == 1 {
				dataset = args[0]
			}
			runs, err := a.Ingest.ListRuns(dataset, limit)
			if err != nil {
				return err
			}
			if runs == nil {
				runs = []domain.IngestRun{}
			}
			return opts.formatter(cmd).Result(runs, func(w io.Writer) error {
				rows := make([][]string, len(runs))
				for i, r := range runs {
					detail := strconv.Itoa(r.Stats.NewRows) + " new"
					if r.Status != "success" {
						detail = r.Error
					}
					rows[i] = []string{humanize.Time(r.StartedAt), r.Dataset, r.Source, r.Status, detail}
				}
				return Table(w, []string{"STARTED", "DATASET", "SOURCE", "STATUS", "DETAIL"}, rows)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show")
	return cmd
}
