package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/leapconn/internal/params"
	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/spf13/cobra"
)

// ExecOptions holds options for the exec command.
type ExecOptions struct {
	Input    string
	Params   []string
	NoCommit bool
}

// NewExecCommand creates the exec command.
func NewExecCommand() *cobra.Command {
	opts := &ExecOptions{}

	cmd := &cobra.Command{
		Use:   "exec [SQL]",
		Short: "Run raw SQL against a connection",
		Long: `Run one SQL statement with bound parameters.

Parameters are bound positionally with the backend's placeholder syntax
(? for sqlite, duckdb and mysql; $1, $2 for postgres). Values are parsed:
NULL, true/false and numbers keep their type, "quoted" values stay strings.

With --no-commit the statement runs in a transaction that is rolled back
when the command exits.`,
		Example: `  leapconn exec "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"
  leapconn exec "SELECT * FROM users WHERE id = ?" --param 1
  leapconn exec -i cleanup.sql --no-commit`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "Positional parameter (repeatable)")
	cmd.Flags().BoolVar(&opts.NoCommit, "no-commit", false, "Roll back instead of committing")

	return cmd
}

func runExec(cmd *cobra.Command, args []string, opts *ExecOptions) error {
	query, err := readSQL(args, opts.Input)
	if err != nil {
		return err
	}
	values := make([]any, len(opts.Params))
	for i, p := range opts.Params {
		values[i] = params.ParseValue(p)
	}

	cc := NewCommandContext(cmd)
	return cc.WithConnection(cmd.Context(), func(conn adapter.Connection) error {
		res, err := conn.Execute(cmd.Context(), query, values, !opts.NoCommit)
		if err != nil {
			return err
		}
		if opts.NoCommit {
			cc.Renderer.Warning("changes were not committed")
		}
		if res.Records != nil {
			return cc.Renderer.Records(res.Records)
		}
		return cc.Renderer.Fields([]string{"rows_affected", "last_insert_id"}, res.RowsAffected, res.LastInsertID)
	})
}

func readSQL(args []string, input string) (string, error) {
	switch {
	case input != "" && len(args) > 0:
		return "", errors.New("pass SQL as an argument or with --input, not both")
	case input != "":
		b, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("failed to read SQL file: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", errors.New("no SQL given")
	}
}
