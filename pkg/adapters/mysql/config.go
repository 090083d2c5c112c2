package mysql

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/leapstack-labs/leapconn/pkg/adapter"
)

// Config holds MySQL connection settings.
// Decoded from the constructor argument bag using mapstructure.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`

	// PrimaryKeyColumn names the auto-increment key used to re-read written rows.
	PrimaryKeyColumn string `mapstructure:"primary_key_column"`

	// PoolSize connections are kept idle; up to PoolSize+MaxOverflow are open.
	PoolSize    int `mapstructure:"pool_size"`
	MaxOverflow int `mapstructure:"max_overflow"`

	// ConnectTimeout is the dial timeout in seconds.
	ConnectTimeout int `mapstructure:"connect_timeout"`

	// Params are extra DSN parameters, sent as session variables.
	Params map[string]string `mapstructure:"params"`
}

// ParseConfig decodes and validates args.
func ParseConfig(args map[string]any) (*Config, error) {
	cfg := &Config{
		PrimaryKeyColumn: "id",
		PoolSize:         5,
		MaxOverflow:      10,
		ConnectTimeout:   10,
	}
	if err := adapter.DecodeArgs(args, cfg); err != nil {
		return nil, err
	}

	// Password may be empty but must be given.
	var missing []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"host", cfg.Host != ""},
		{"port", adapter.HasArg(args, "port")},
		{"user", cfg.User != ""},
		{"password", adapter.HasArg(args, "password")},
		{"database", cfg.Database != ""},
	} {
		if !f.ok {
			missing = append(missing, f.name)
		}
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
	if cfg.ConnectTimeout < 0 {
		return nil, adapter.ArgsError("connect_timeout must not be negative, got %d", cfg.ConnectTimeout)
	}
	if _, err := adapter.ValidateIdentifier(cfg.PrimaryKeyColumn); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DriverConfig returns the go-sql-driver configuration.
// Timestamps are parsed into time.Time in UTC and UPDATE reports matched
// rather than changed rows, like the other backends.
func (c *Config) DriverConfig() *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.ClientFoundRows = true
	mc.Timeout = time.Duration(c.ConnectTimeout) * time.Second
	if len(c.Params) > 0 {
		mc.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			mc.Params[k] = v
		}
	}
	return mc
}

// DSN returns the driver data source name.
func (c *Config) DSN() string {
	return c.DriverConfig().FormatDSN()
}
