package commands

import (
	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/leapstack-labs/leapconn/pkg/core"
	"github.com/spf13/cobra"
)

// NewBackendsCommand creates the backends command.
func NewBackendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the registered database backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rs := core.NewRecordSet("backend")
			for _, name := range adapter.ListAdapters() {
				rs.Append(name)
			}
			return NewCommandContext(cmd).Renderer.Records(rs)
		},
	}
}
