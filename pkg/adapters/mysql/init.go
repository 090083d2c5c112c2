package mysql

import (
	"log/slog"

	"github.com/leapstack-labs/leapconn/pkg/adapter"
)

func init() {
	adapter.Register("mysql", Open)
}

// Open is the registry constructor for the "mysql" token.
func Open(args map[string]any, logger *slog.Logger) (adapter.Connection, error) {
	cfg, err := ParseConfig(args)
	if err != nil {
		return nil, err
	}
	return New(*cfg, logger), nil
}
