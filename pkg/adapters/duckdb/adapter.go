// Package duckdb provides the embedded DuckDB backend.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/leapstack-labs/leapconn/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements adapter.Connection for DuckDB.
// Inserts and updates use RETURNING * for the written rows.
type Adapter struct {
	adapter.BaseSQLAdapter
	cfg Config
}

// New creates a disconnected DuckDB adapter.
// If logger is nil, a discard logger is used.
func New(cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{
		BaseSQLAdapter: adapter.NewBaseSQLAdapter(adapter.DuckDBDialect, cfg.PrimaryKeyColumn, logger),
		cfg:            cfg,
	}
}

// Connect opens the database and applies extensions, settings and secrets.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.DB != nil {
		return nil
	}

	a.Logger.Debug("opening duckdb database", slog.String("path", a.cfg.DBPath))
	// One session keeps SET values and pending transactions on the same handle.
	err := a.OpenDB(ctx, "duckdb", a.cfg.DBPath, func(db *sql.DB) {
		db.SetMaxOpenConns(1)
	})
	if err != nil {
		return err
	}

	for _, stmt := range a.setupStatements() {
		if _, err := a.DB.ExecContext(ctx, stmt); err != nil {
			_ = a.DB.Close()
			a.DB = nil
			return core.NewResourceError(core.CodeConnection, "failed to configure duckdb session", err)
		}
	}
	return nil
}

// setupStatements returns the session setup SQL in a stable order.
func (a *Adapter) setupStatements() []string {
	var stmts []string
	for _, ext := range a.cfg.Extensions {
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}

	keys := make([]string, 0, len(a.cfg.Settings))
	for k := range a.cfg.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", k, quote(a.cfg.Settings[k])))
	}

	for _, s := range a.cfg.Secrets {
		stmts = append(stmts, buildCreateSecretSQL(s))
	}
	return stmts
}

// buildCreateSecretSQL renders a CREATE SECRET statement for s.
func buildCreateSecretSQL(s SecretConfig) string {
	parts := []string{"TYPE " + s.Type}
	if s.Provider != "" {
		parts = append(parts, "PROVIDER "+s.Provider)
	}
	if s.Region != "" {
		parts = append(parts, "REGION "+quote(s.Region))
	}
	if scope := scopeSQL(s.Scope); scope != "" {
		parts = append(parts, "SCOPE "+scope)
	}
	if s.KeyID != "" {
		parts = append(parts, "KEY_ID "+quote(s.KeyID))
	}
	if s.Secret != "" {
		parts = append(parts, "SECRET "+quote(s.Secret))
	}
	if s.Endpoint != "" {
		parts = append(parts, "ENDPOINT "+quote(s.Endpoint))
	}
	if s.URLStyle != "" {
		parts = append(parts, "URL_STYLE "+quote(s.URLStyle))
	}
	if s.UseSSL != nil {
		parts = append(parts, fmt.Sprintf("USE_SSL %t", *s.UseSSL))
	}
	return "CREATE SECRET (\n    " + strings.Join(parts, ",\n    ") + "\n)"
}

func scopeSQL(scope any) string {
	switch v := scope.(type) {
	case string:
		if v != "" {
			return quote(v)
		}
	case []string:
		return quoteList(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
		return quoteList(items)
	}
	return ""
}

func quoteList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = quote(item)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// quote renders s as a SQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// TableExists checks information_schema for a table named table.
func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	if err := a.RequireConnected(); err != nil {
		return false, err
	}
	if _, err := adapter.ValidateIdentifier(table); err != nil {
		return false, err
	}

	var n int
	err := a.Reader().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", table).Scan(&n)
	if err != nil {
		a.RollbackPending()
		return false, adapter.WrapError(core.CodeTableExists, "table_exists", err)
	}
	return n > 0, nil
}

// TableInfo describes table using PRAGMA table_info.
func (a *Adapter) TableInfo(ctx context.Context, table string) (core.ColumnInfos, error) {
	if err := a.RequireConnected(); err != nil {
		return nil, err
	}
	if _, err := adapter.ValidateIdentifier(table); err != nil {
		return nil, err
	}

	exists, err := a.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, adapter.TableNotFound(table)
	}

	rows, err := a.Reader().QueryContext(ctx, fmt.Sprintf("PRAGMA table_info('%s')", table))
	if err != nil {
		a.RollbackPending()
		return nil, adapter.WrapError(core.CodeTableInfo, "table_info", err)
	}
	rs, err := adapter.ScanRecords(rows)
	if err != nil {
		a.RollbackPending()
		return nil, adapter.WrapError(core.CodeTableInfo, "table_info", err)
	}

	infos, err := adapter.ColumnInfosFromPragma(rs)
	if err != nil {
		return nil, adapter.WrapError(core.CodeTableInfo, "table_info", err)
	}
	return infos, nil
}

var _ adapter.Connection = (*Adapter)(nil)
