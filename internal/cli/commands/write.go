package commands

import (
	"errors"

	"github.com/leapstack-labs/leapconn/internal/params"
	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/leapstack-labs/leapconn/pkg/core"
	"github.com/spf13/cobra"
)

// NewInsertCommand creates the insert command.
func NewInsertCommand() *cobra.Command {
	var (
		rows      []string
		returning bool
	)

	cmd := &cobra.Command{
		Use:   "insert TABLE --row JSON [--row JSON...]",
		Short: "Insert rows into a table",
		Long: `Insert one or more rows in a single transaction.

Each --row is a JSON object. All rows must have the same keys.`,
		Example: `  leapconn insert users --row '{"name":"ada","age":36}' --row '{"name":"alan","age":41}'
  leapconn insert users --row '{"name":"grace"}' --returning`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := params.ParseRows(rows)
			if err != nil {
				return err
			}
			cc := NewCommandContext(cmd)
			return cc.WithConnection(cmd.Context(), func(conn adapter.Connection) error {
				res, err := conn.Insert(cmd.Context(), args[0], parsed, core.InsertOptions{ReturnInserted: returning})
				if err != nil {
					return err
				}
				return renderWrite(cc, res)
			})
		},
	}

	cmd.Flags().StringArrayVar(&rows, "row", nil, "Row as a JSON object (repeatable)")
	cmd.Flags().BoolVar(&returning, "returning", false, "Print the inserted rows")
	_ = cmd.MarkFlagRequired("row")
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand() *cobra.Command {
	var (
		set       []string
		where     []string
		all       bool
		returning bool
	)

	cmd := &cobra.Command{
		Use:   "update TABLE --set col=value [--where col=value...]",
		Short: "Update rows in a table",
		Example: `  leapconn update users --set active=false --where name=ada
  leapconn update users --set score=0 --all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assignments, err := params.ParseAssignments(set)
			if err != nil {
				return err
			}
			filters, err := scopeFilters(where, all)
			if err != nil {
				return err
			}
			cc := NewCommandContext(cmd)
			return cc.WithConnection(cmd.Context(), func(conn adapter.Connection) error {
				res, err := conn.Update(cmd.Context(), args[0], assignments, filters, core.UpdateOptions{ReturnUpdated: returning})
				if err != nil {
					return err
				}
				return renderWrite(cc, res)
			})
		},
	}

	cmd.Flags().StringArrayVar(&set, "set", nil, "Assignment column=value (repeatable)")
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "Equality filter column=value (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "Update every row")
	cmd.Flags().BoolVar(&returning, "returning", false, "Print the updated rows")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	var (
		where []string
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "delete TABLE [--where col=value...]",
		Short: "Delete rows from a table",
		Example: `  leapconn delete users --where name=ada
  leapconn delete sessions --all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := scopeFilters(where, all)
			if err != nil {
				return err
			}
			cc := NewCommandContext(cmd)
			return cc.WithConnection(cmd.Context(), func(conn adapter.Connection) error {
				n, err := conn.Delete(cmd.Context(), args[0], filters)
				if err != nil {
					return err
				}
				return cc.Renderer.Fields([]string{"rows_affected"}, n)
			})
		},
	}

	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "Equality filter column=value (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "Delete every row")
	return cmd
}

// scopeFilters guards against accidental full-table writes: a write with no
// filter needs --all.
func scopeFilters(where []string, all bool) (core.Filters, error) {
	if all && len(where) > 0 {
		return nil, errors.New("--all cannot be combined with --where")
	}
	if !all && len(where) == 0 {
		return nil, errors.New("refusing to touch every row: pass --where or --all")
	}
	return params.ParseFilters(where)
}

func renderWrite(cc *CommandContext, res *core.WriteResult) error {
	if res.Records != nil {
		return cc.Renderer.Records(res.Records)
	}
	return cc.Renderer.Fields([]string{"rows_affected"}, res.RowsAffected)
}
