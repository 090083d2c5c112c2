package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/leapconn/pkg/adapter"
)

func init() {
	adapter.Register("sqlite", Open)
}

// Open is the registry constructor: it parses args and returns a
// disconnected adapter.
func Open(args map[string]any, logger *slog.Logger) (adapter.Connection, error) {
	cfg, err := ParseConfig(args)
	if err != nil {
		return nil, err
	}
	return New(*cfg, logger), nil
}
