package commands

import (
	"os"

	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/spf13/cobra"
)

// DefaultMigrationsDir is where migrate looks for goose SQL files.
const DefaultMigrationsDir = "migrations"

// NewMigrateCommand creates the migrate command and its subcommands.
func NewMigrateCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply goose SQL migrations",
		Long: `Apply goose-format SQL migrations (-- +goose Up / -- +goose Down) from a
directory to the selected connection. Supported on sqlite, postgres and
mysql; goose has no duckdb dialect.`,
	}
	cmd.PersistentFlags().StringVarP(&dir, "dir", "d", DefaultMigrationsDir, "Migrations directory")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			return cc.WithConnection(cmd.Context(), func(conn adapter.Connection) error {
				if err := adapter.Migrate(cmd.Context(), conn, os.DirFS(dir), "."); err != nil {
					return err
				}
				v, err := adapter.MigrationVersion(cmd.Context(), conn)
				if err != nil {
					return err
				}
				cc.Renderer.Success("Migrated to version %d", v)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			return cc.WithConnection(cmd.Context(), func(conn adapter.Connection) error {
				v, err := adapter.MigrationVersion(cmd.Context(), conn)
				if err != nil {
					return err
				}
				return cc.Renderer.Fields([]string{"version"}, v)
			})
		},
	})

	return cmd
}
