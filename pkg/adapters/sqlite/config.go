package sqlite

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapconn/pkg/adapter"
)

// Config holds SQLite connection settings.
// Decoded from the constructor argument bag using mapstructure.
type Config struct {
	// DBPath is the database file, or ":memory:" for a private in-memory database.
	DBPath string `mapstructure:"db_path"`

	// PrimaryKeyColumn is used to re-read inserted rows.
	PrimaryKeyColumn string `mapstructure:"primary_key_column"`

	// BusyTimeout is how long, in seconds, to wait on a locked database.
	BusyTimeout int `mapstructure:"busy_timeout"`
}

// ParseConfig decodes and validates args.
func ParseConfig(args map[string]any) (*Config, error) {
	cfg := &Config{
		PrimaryKeyColumn: "id",
		BusyTimeout:      10,
	}
	if err := adapter.DecodeArgs(args, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, adapter.ArgsError("db_path is required")
	}
	if _, err := adapter.ValidateIdentifier(cfg.PrimaryKeyColumn); err != nil {
		return nil, err
	}
	if cfg.BusyTimeout < 0 {
		return nil, adapter.ArgsError("busy_timeout must not be negative, got %d", cfg.BusyTimeout)
	}
	return cfg, nil
}

// DSN returns the modernc.org/sqlite data source name with pragmas applied
// on every new connection.
func (c *Config) DSN() string {
	sep := "?"
	if strings.Contains(c.DBPath, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", c.DBPath, sep, c.BusyTimeout*1000)
}
