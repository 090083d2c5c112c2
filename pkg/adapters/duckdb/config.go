package duckdb

import (
	"strings"

	"github.com/leapstack-labs/leapconn/pkg/adapter"
)

// Config holds DuckDB connection settings.
// Decoded from the constructor argument bag using mapstructure.
type Config struct {
	// DBPath is the database file, or ":memory:" for an in-memory database.
	DBPath string `mapstructure:"db_path"`

	// PrimaryKeyColumn names the key column of written tables.
	PrimaryKeyColumn string `mapstructure:"primary_key_column"`

	// Extensions to install and load (e.g., "httpfs", "spatial", "json")
	Extensions []string `mapstructure:"extensions"`

	// Secrets for cloud storage authentication
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret for cloud storage.
type SecretConfig struct {
	// Type: "s3", "gcs", "azure", "r2", "huggingface"
	Type string `mapstructure:"type"`

	// Provider: "config", "credential_chain", "service_account", etc.
	Provider string `mapstructure:"provider"`

	// Region for S3 buckets
	Region string `mapstructure:"region,omitempty"`

	// Scope limits the secret to specific paths (string or []string)
	Scope any `mapstructure:"scope,omitempty"`

	// KeyID for explicit credentials (prefer credential_chain)
	KeyID string `mapstructure:"key_id,omitempty"`

	// Secret for explicit credentials (prefer credential_chain)
	Secret string `mapstructure:"secret,omitempty"`

	// Endpoint for S3-compatible services (MinIO, etc.)
	Endpoint string `mapstructure:"endpoint,omitempty"`

	// URLStyle: "vhost" or "path" for S3
	URLStyle string `mapstructure:"url_style,omitempty"`

	// UseSSL: whether to use HTTPS (default true)
	UseSSL *bool `mapstructure:"use_ssl,omitempty"`
}

// ParseConfig decodes and validates args.
func ParseConfig(args map[string]any) (*Config, error) {
	cfg := &Config{PrimaryKeyColumn: "id"}
	if err := adapter.DecodeArgs(args, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, adapter.ArgsError("db_path is required")
	}
	if _, err := adapter.ValidateIdentifier(cfg.PrimaryKeyColumn); err != nil {
		return nil, err
	}
	if err := adapter.ValidateIdentifiers(cfg.Extensions...); err != nil {
		return nil, err
	}
	for key := range cfg.Settings {
		if _, err := adapter.ValidateIdentifier(key); err != nil {
			return nil, err
		}
	}
	for i, s := range cfg.Secrets {
		if _, err := adapter.ValidateIdentifier(s.Type); err != nil {
			return nil, adapter.ArgsError("secret %d: invalid type %q", i, s.Type)
		}
		if s.Provider != "" {
			if _, err := adapter.ValidateIdentifier(s.Provider); err != nil {
				return nil, adapter.ArgsError("secret %d: invalid provider %q", i, s.Provider)
			}
		}
	}
	return cfg, nil
}
