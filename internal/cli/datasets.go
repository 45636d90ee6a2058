package cli

import (
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// newDatasetsCommand creates the datasets command.
func newDatasetsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets [name]",
		Short: "List datasets, or describe one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			out := opts.formatter(cmd)

			if len(args) == 1 {
				info, err := a.Records.GetDataset(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return out.Result(info, func(w io.Writer) error {
					return Table(w, []string{"FIELD", "VALUE"}, [][]string{
						{"name", info.Name},
						{"display name", info.DisplayName},
						{"identity field", info.IdentityField},
						{"records", strconv.Itoa(info.RecordCount)},
						{"size", humanize.Bytes(uint64(info.Size))},
						{"modified", humanize.Time(info.ModifiedAt)},
						{"columns", strings.Join(info.Columns, ", ")},
					})
				})
			}

			infos, err := a.Records.ListDatasets(cmd.Context())
			if err != nil {
				return err
			}
			return out.Result(infos, func(w io.Writer) error {
				rows := make([][]string, len(infos))
				for i, d := range infos {
					rows[i] = []string{
						d.Name,
						d.IdentityField,
						humanize.Comma(int64(d.RecordCount)),
						humanize.Bytes(uint64(d.Size)),
						humanize.Time(d.ModifiedAt),
					}
				}
				return Table(w, []string{"NAME", "IDENTITY", "RECORDS", "SIZE", "MODIFIED"}, rows)
			})
		},
	}
}
