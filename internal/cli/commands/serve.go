package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/leapconn/internal/config"
	"github.com/leapstack-labs/leapconn/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command. The --addr and --watch flags
// feed server.addr and server.watch through the config loader.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve connection profiles over HTTP",
		Long: `Start a JSON HTTP API over the configured connection profiles.

Routes:
  GET    /healthz
  GET    /backends
  GET    /connections
  GET    /events                  (server-sent config reload events)
  GET    /tables/{table}          (query params filter; _columns, _order, _limit)
  GET    /tables/{table}/schema
  POST   /tables/{table}/rows     (JSON array of objects)
  PATCH  /tables/{table}/rows     (JSON object of assignments; filters or _all=true)
  DELETE /tables/{table}/rows     (filters or _all=true)

Select a profile with ?_connection=NAME or the X-Leapconn-Connection header.
With --watch the config file is reloaded when it changes.`,
		Example: `  leapconn serve
  leapconn serve --addr 127.0.0.1:9000 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			flags := cmd.Flags()
			cfgFile := cc.Cfg.File

			srv := server.New(server.Options{
				Config: cc.Cfg,
				Loader: func() (*config.Config, error) {
					return config.Load(cfgFile, flags)
				},
				Addr:   cc.Cfg.Server.Addr,
				Watch:  cc.Cfg.Server.Watch,
				Logger: cc.Logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().String("addr", config.DefaultServerAddr, "Address to listen on")
	cmd.Flags().Bool("watch", false, "Reload the config file when it changes")
	return cmd
}
