package commands

import (
	"github.com/leapstack-labs/leapconn/internal/params"
	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/leapstack-labs/leapconn/pkg/core"
	"github.com/spf13/cobra"
)

// SelectOptions holds options for the select command.
type SelectOptions struct {
	Columns    []string
	Where      []string
	OrderBy    string
	Limit      int
	ParseDates []string
	DTypes     []string
	TZ         string
}

// NewSelectCommand creates the select command.
func NewSelectCommand() *cobra.Command {
	opts := &SelectOptions{}

	cmd := &cobra.Command{
		Use:   "select TABLE",
		Short: "Read rows from a table",
		Long: `Read rows from a table with optional equality filters, ordering and a limit.

Transforms run after the fetch: --dtype coerces a column, --parse-date parses
a column with a strftime format or a Go layout, and --tz converts timestamps.`,
		Example: `  leapconn select users
  leapconn select users --columns id,name --where active=true --order-by "name DESC" --limit 10
  leapconn select events --parse-date created_at=%Y-%m-%dT%H:%M:%S --tz Europe/Berlin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "Columns to fetch (default all)")
	cmd.Flags().StringArrayVarP(&opts.Where, "where", "w", nil, "Equality filter column=value (repeatable)")
	cmd.Flags().StringVar(&opts.OrderBy, "order-by", "", "Order terms, e.g. \"name, id DESC\"")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Maximum rows (0 for no limit)")
	cmd.Flags().StringArrayVar(&opts.ParseDates, "parse-date", nil, "Parse column=format into timestamps (repeatable)")
	cmd.Flags().StringArrayVar(&opts.DTypes, "dtype", nil, "Coerce column=int|float|string|bool|time (repeatable)")
	cmd.Flags().StringVar(&opts.TZ, "tz", "", "Convert timestamps into this IANA zone")

	return cmd
}

func runSelect(cmd *cobra.Command, table string, opts *SelectOptions) error {
	filters, err := params.ParseFilters(opts.Where)
	if err != nil {
		return err
	}
	tr, err := params.ParseTransform(opts.ParseDates, opts.DTypes, opts.TZ)
	if err != nil {
		return err
	}

	cc := NewCommandContext(cmd)
	return cc.WithConnection(cmd.Context(), func(conn adapter.Connection) error {
		rs, err := conn.Select(cmd.Context(), table, core.SelectOptions{
			Columns:   opts.Columns,
			Filters:   filters,
			OrderBy:   opts.OrderBy,
			Limit:     opts.Limit,
			Transform: tr,
		})
		if err != nil {
			return err
		}
		return cc.Renderer.Records(rs)
	})
}

// NewInfoCommand creates the info command.
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "info TABLE",
		Aliases: []string{"schema"},
		Short:   "Describe the columns of a table",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			return cc.WithConnection(cmd.Context(), func(conn adapter.Connection) error {
				cols, err := conn.TableInfo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return cc.Renderer.Records(cols.RecordSet())
			})
		},
	}
}

// NewExistsCommand creates the exists command. It fails when the table is missing.
func NewExistsCommand() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "exists TABLE",
		Short: "Check whether a table exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			return cc.WithConnection(cmd.Context(), func(conn adapter.Connection) error {
				ok, err := conn.TableExists(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !quiet {
					if err := cc.Renderer.Fields([]string{"table", "exists"}, args[0], ok); err != nil {
						return err
					}
				}
				if !ok {
					return adapter.TableNotFound(args[0])
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only set the exit status")
	return cmd
}
