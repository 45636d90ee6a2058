package cli

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// newExportCommand creates the export command.
func newExportCommand(opts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <dataset>",
		Short: "Write the stored delimited text of a dataset unchanged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			data, err := a.Records.ExportRaw(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			fs := opts.Fs
			if fs == nil {
				fs = afero.NewOsFs()
			}
			return afero.WriteFile(fs, output, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
