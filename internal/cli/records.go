package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"infradesk/internal/domain"
	"infradesk/internal/service"
)

// newRecordsCommand creates the records command group.
func newRecordsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Read and edit the records of a dataset",
	}
	cmd.AddCommand(newRecordsListCommand(opts))
	cmd.AddCommand(newRecordsGetCommand(opts))
	cmd.AddCommand(newRecordsInsertCommand(opts))
	cmd.AddCommand(newRecordsUpdateCommand(opts))
	cmd.AddCommand(newRecordsDeleteCommand(opts))
	return cmd
}

func newRecordsListCommand(opts *RootOptions) *cobra.Command {
	var (
		q    service.ListQuery
		desc bool
	)
	cmd := &cobra.Command{
		Use:   "list <dataset>",
		Short: "List records with optional search, sort and pagination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if desc {
				q.SortDirection = "desc"
			}
			res, err := a.Records.List(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			return opts.formatter(cmd).Result(res, func(w io.Writer) error {
				if err := Table(w, res.Columns, recordRows(res.Rows, res.Columns)); err != nil {
					return err
				}
				_, err := fmt.Fprintf(w, "%d of %d records\n", len(res.Rows), res.Total)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&q.Search, "search", "s", "", "case-insensitive substring to match in any field")
	cmd.Flags().StringVar(&q.SortField, "sort", "", "field to sort by")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&q.Page, "page", 1, "1-based page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", 0, "records per page (0 lists every record)")
	cmd.Flags().BoolVar(&q.ReturnAll, "all", false, "ignore pagination")
	return cmd
}

// locatorFlags select a record by --position or --id.
type locatorFlags struct {
	position int
	id       string
}

func (l *locatorFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&l.position, "position", "p", -1, "0-based record position")
	cmd.Flags().StringVar(&l.id, "id", "", "record identity")
	cmd.MarkFlagsMutuallyExclusive("position", "id")
	cmd.MarkFlagsOneRequired("position", "id")
}

func newRecordsGetCommand(opts *RootOptions) *cobra.Command {
	var loc locatorFlags
	cmd := &cobra.Command{
		Use:   "get <dataset>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			var rec *domain.Record
			if loc.id != "" {
				rec, err = a.Records.GetByIdentity(cmd.Context(), args[0], loc.id)
			} else {
				rec, err = a.Records.GetByPosition(cmd.Context(), args[0], loc.position)
			}
			if err != nil {
				return err
			}
			return printRecord(opts.formatter(cmd), rec)
		},
	}
	loc.register(cmd)
	return cmd
}

// fieldFlags collect record fields from --set k=v pairs and/or --json.
type fieldFlags struct {
	set  []string
	json string
}

func (f *fieldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "field assignment key=value (repeatable)")
	cmd.Flags().StringVar(&f.json, "json", "", "fields as a JSON object")
}

func (f *fieldFlags) record() (*domain.Record, error) {
	rec := domain.NewRecord()
	if f.json != "" {
		if err := rec.UnmarshalJSON([]byte(f.json)); err != nil {
			return nil, fmt.Errorf("parse --json: %w", err)
		}
	}
	for _, kv := range f.set {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("--set %q: want key=value", kv)
		}
		rec.Set(strings.TrimSpace(k), v)
	}
	if rec.Len() == 0 {
		return nil, fmt.Errorf("no fields given: use --set key=value or --json")
	}
	return rec, nil
}

func newRecordsInsertCommand(opts *RootOptions) *cobra.Command {
	var fields fieldFlags
	cmd := &cobra.Command{
		Use:   "insert <dataset>",
		Short: "Append a record; the identity and timestamps are generated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := fields.record()
			if err != nil {
				return err
			}
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			created, err := a.Records.Insert(cmd.Context(), args[0], rec)
			if err != nil {
				return err
			}
			return printRecord(opts.formatter(cmd), created)
		},
	}
	fields.register(cmd)
	return cmd
}

func newRecordsUpdateCommand(opts *RootOptions) *cobra.Command {
	var (
		loc    locatorFlags
		fields fieldFlags
	)
	cmd := &cobra.Command{
		Use:   "update <dataset>",
		Short: "Merge fields into a record, keeping its identity and created_at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := fields.record()
			if err != nil {
				return err
			}
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			var updated *domain.Record
			if loc.id != "" {
				updated, err = a.Records.UpdateByIdentity(cmd.Context(), args[0], loc.id, rec)
			} else {
				updated, err = a.Records.UpdateByPosition(cmd.Context(), args[0], loc.position, rec)
			}
			if err != nil {
				return err
			}
			return printRecord(opts.formatter(cmd), updated)
		},
	}
	loc.register(cmd)
	fields.register(cmd)
	return cmd
}

func newRecordsDeleteCommand(opts *RootOptions) *cobra.Command {
	var loc locatorFlags
	cmd := &cobra.Command{
		Use:   "delete <dataset>",
		Short: "Remove a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			var removed *domain.Record
			if loc.id != "" {
				removed, err = a.Records.DeleteByIdentity(cmd.Context(), args[0], loc.id)
			} else {
				removed, err = a.Records.DeleteByPosition(cmd.Context(), args[0], loc.position)
			}
			if err != nil {
				return err
			}
			return printRecord(opts.formatter(cmd), removed)
		},
	}
	loc.register(cmd)
	return cmd
}

func printRecord(out *OutputFormatter, rec *domain.Record) error {
	return out.Result(rec, func(w io.Writer) error {
		var rows [][]string
		rec.Each(func(k string, _ any) {
			rows = append(rows, []string{k, rec.String(k)})
		})
		return Table(w, []string{"FIELD", "VALUE"}, rows)
	})
}
