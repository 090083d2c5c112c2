package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/leapstack-labs/leapconn/pkg/core"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentChecks bounds how many profiles are dialed at once.
const maxConcurrentChecks = 4

type checkResult struct {
	profile string
	backend string
	status  string
	elapsed time.Duration
	err     error
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [PROFILE...]",
		Short: "Verify that connection profiles can connect",
		Long: `Connect to each profile and disconnect again, concurrently.

With no arguments every profile in the config file is checked.
The command fails if any profile cannot connect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args)
		},
	}
}

func runCheck(cmd *cobra.Command, names []string) error {
	cc := NewCommandContext(cmd)
	if len(names) == 0 {
		names = cc.Cfg.ProfileNames()
	}
	if len(names) == 0 {
		return fmt.Errorf("no connections configured")
	}

	results := make([]checkResult, len(names))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(maxConcurrentChecks)
	for i, name := range names {
		g.Go(func() error {
			results[i] = cc.checkProfile(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	rs := core.NewRecordSet("profile", "backend", "status", "elapsed", "error")
	failed := 0
	for _, r := range results {
		var msg any
		if r.err != nil {
			failed++
			msg = r.err.Error()
		}
		rs.Append(r.profile, r.backend, r.status, r.elapsed.Round(time.Millisecond).String(), msg)
	}
	if err := cc.Renderer.Records(rs); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d connections failed", failed, len(results))
	}
	return nil
}

func (c *CommandContext) checkProfile(ctx context.Context, name string) checkResult {
	res := checkResult{profile: name, status: "error"}
	token, args, err := c.Cfg.Profile(name)
	if err != nil {
		res.err = err
		return res
	}
	res.backend = token

	start := time.Now()
	err = adapter.Use(ctx, token, args, c.Logger.With("profile", name), func(adapter.Connection) error {
		return nil
	})
	res.elapsed = time.Since(start)
	if err != nil {
		res.err = err
		return res
	}
	res.status = "ok"
	return res
}
