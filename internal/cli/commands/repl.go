package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapconn/internal/cli/output"
	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "leapconn> "
	replContPrompt = "     ...> "
)

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive SQL shell on a connection",
		Long: `Open the selected connection and read SQL statements interactively.

Statements end with a semicolon. With autocommit on (the default) each
statement commits; turn it off with ".autocommit off" and finish work with
.commit or .rollback. A pending transaction is rolled back on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepl(cmd)
		},
	}
}

func runRepl(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()

	return cc.WithConnection(ctx, func(conn adapter.Connection) error {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          replPrompt,
			HistoryFile:     historyFile(),
			AutoComplete:    newDotCompleter(),
			InterruptPrompt: "^C",
			EOFPrompt:       ".quit",
			Stdout:          cmd.OutOrStdout(),
			Stderr:          cmd.ErrOrStderr(),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize REPL: %w", err)
		}
		defer func() { _ = rl.Close() }()

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leapconn REPL (%s)\n", conn.Backend())
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")

		s := newReplSession(conn, cc.Renderer, cmd.ErrOrStderr())
		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				s.buf.Reset()
				rl.SetPrompt(replPrompt)
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if s.Feed(ctx, line) {
				break
			}
			if s.buf.Len() > 0 {
				rl.SetPrompt(replContPrompt)
			} else {
				rl.SetPrompt(replPrompt)
			}
		}
		if conn.InTransaction() {
			cc.Renderer.Warning("rolling back uncommitted changes")
			return conn.Rollback()
		}
		return nil
	})
}

// replSession holds the state of one interactive session. It is separate
// from readline so it can be driven line by line.
type replSession struct {
	conn       adapter.Connection
	r          *output.Renderer
	errOut     io.Writer
	autocommit bool
	buf        strings.Builder
}

func newReplSession(conn adapter.Connection, r *output.Renderer, errOut io.Writer) *replSession {
	return &replSession{conn: conn, r: r, errOut: errOut, autocommit: true}
}

// Feed processes one input line and reports whether the session should end.
func (s *replSession) Feed(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if s.buf.Len() == 0 && strings.HasPrefix(line, ".") {
		return s.dot(ctx, line)
	}

	s.buf.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.buf.WriteString(" ")
		return false
	}
	query := strings.TrimSpace(strings.TrimSuffix(s.buf.String(), ";"))
	s.buf.Reset()

	if err := s.exec(ctx, query); err != nil {
		s.fail(err)
	}
	return false
}

func (s *replSession) exec(ctx context.Context, query string) error {
	res, err := s.conn.Execute(ctx, query, nil, s.autocommit)
	if err != nil {
		return err
	}
	if res.Records != nil {
		return s.r.Records(res.Records)
	}
	s.r.Success("OK, %d rows affected", res.RowsAffected)
	return nil
}

func (s *replSession) dot(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.r.Out())

	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .schema <table>")
			break
		}
		cols, err := s.conn.TableInfo(ctx, parts[1])
		if err != nil {
			s.fail(err)
			break
		}
		if err := s.r.Records(cols.RecordSet()); err != nil {
			s.fail(err)
		}

	case ".exists":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .exists <table>")
			break
		}
		ok, err := s.conn.TableExists(ctx, parts[1])
		if err != nil {
			s.fail(err)
			break
		}
		_, _ = fmt.Fprintln(s.r.Out(), ok)

	case ".commit":
		if err := s.conn.Commit(); err != nil {
			s.fail(err)
		}

	case ".rollback":
		if err := s.conn.Rollback(); err != nil {
			s.fail(err)
		}

	case ".autocommit":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(s.r.Out(), "autocommit is %s\n", onOff(s.autocommit))
			break
		}
		switch strings.ToLower(parts[1]) {
		case "on":
			if s.conn.InTransaction() {
				_, _ = fmt.Fprintln(s.errOut, "Error: a transaction is pending; .commit or .rollback first")
				break
			}
			s.autocommit = true
		case "off":
			s.autocommit = false
		default:
			_, _ = fmt.Fprintln(s.errOut, "Usage: .autocommit on|off")
		}

	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func (s *replSession) fail(err error) {
	_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help               Show this help message
  .schema <table>     Describe a table
  .exists <table>     Check whether a table exists
  .autocommit on|off  Commit each statement (default on)
  .commit             Commit the pending transaction
  .rollback           Discard the pending transaction
  .quit / .exit       Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

func newDotCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".schema"),
		readline.PcItem(".exists"),
		readline.PcItem(".autocommit", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem(".commit"),
		readline.PcItem(".rollback"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

// historyFile returns the history path under the user cache dir, or "" to
// disable history.
func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "leapconn")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "repl_history")
}
