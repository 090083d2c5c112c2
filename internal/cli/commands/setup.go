package commands

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapconn/internal/cli/output"
	"github.com/leapstack-labs/leapconn/internal/config"
	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds a CommandContext from the command's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.FromContext(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output)),
	}
}

// WithConnection opens the selected profile, runs fn and disconnects.
func (c *CommandContext) WithConnection(ctx context.Context, fn func(adapter.Connection) error) error {
	return c.withProfile(ctx, c.Cfg.Default, fn)
}

func (c *CommandContext) withProfile(ctx context.Context, name string, fn func(adapter.Connection) error) error {
	token, args, err := c.Cfg.Profile(name)
	if err != nil {
		return err
	}
	c.Logger.Debug("using connection", "profile", name, "backend", token)
	return adapter.Use(ctx, token, args, c.Logger, fn)
}
