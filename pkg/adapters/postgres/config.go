package postgres

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leapstack-labs/leapconn/pkg/adapter"
)

// Config holds PostgreSQL connection settings.
// Decoded from the constructor argument bag using mapstructure.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`

	// PrimaryKeyColumn names the key column of written tables.
	PrimaryKeyColumn string `mapstructure:"primary_key_column"`

	// PoolSize and MaxOverflow bound the pool: at most PoolSize+MaxOverflow
	// connections are open at once.
	PoolSize    int `mapstructure:"pool_size"`
	MaxOverflow int `mapstructure:"max_overflow"`

	// SSLMode is passed through as sslmode (default "disable").
	SSLMode string `mapstructure:"sslmode"`

	// Params are extra libpq-style options (e.g. application_name, connect_timeout).
	Params map[string]string `mapstructure:"params"`
}

// ParseConfig decodes and validates args.
func ParseConfig(args map[string]any) (*Config, error) {
	cfg := &Config{
		PrimaryKeyColumn: "id",
		PoolSize:         5,
		MaxOverflow:      10,
		SSLMode:          "disable",
	}
	if err := adapter.DecodeArgs(args, cfg); err != nil {
		return nil, err
	}

	var missing []string
	if cfg.Host == "" {
		missing = append(missing, "host")
	}
	if !adapter.HasArg(args, "port") {
		missing = append(missing, "port")
	}
	if cfg.User == "" {
		missing = append(missing, "user")
	}
	// An empty password is allowed for trust auth, but it must be given.
	if !adapter.HasArg(args, "password") {
		missing = append(missing, "password")
	}
	if cfg.Database == "" {
		missing = append(missing, "database")
	}
	if len(missing) > 0 {
		return nil, adapter.ArgsError("missing required arguments: %s", strings.Join(missing, ", "))
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, adapter.ArgsError("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.PoolSize < 1 {
		return nil, adapter.ArgsError("pool_size must be at least 1, got %d", cfg.PoolSize)
	}
	if cfg.MaxOverflow < 0 {
		return nil, adapter.ArgsError("max_overflow must not be negative, got %d", cfg.MaxOverflow)
	}
	if _, err := adapter.ValidateIdentifier(cfg.PrimaryKeyColumn); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DSN returns a key=value connection string.
func (c *Config) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		quoteValue(c.Host), c.Port, quoteValue(c.Database), quoteValue(c.SSLMode))

	if c.User != "" {
		dsn += " user=" + quoteValue(c.User)
	}
	if c.Password != "" {
		dsn += " password=" + quoteValue(c.Password)
	}

	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		dsn += fmt.Sprintf(" %s=%s", k, quoteValue(c.Params[k]))
	}
	return dsn
}

// PoolConfig parses the DSN and applies the pool bounds.
func (c *Config) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, adapter.ArgsError("invalid connection settings: %v", err)
	}
	pc.MaxConns = int32(c.PoolSize + c.MaxOverflow) //nolint:gosec // bounded by validation
	pc.MinConns = 0
	return pc, nil
}

// quoteValue quotes a DSN value when it is empty or contains spaces,
// quotes or backslashes.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
