// Package sqlite provides the embedded SQLite backend, built on the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/leapstack-labs/leapconn/pkg/core"

	_ "modernc.org/sqlite" // sqlite driver
)

// Adapter implements adapter.Connection for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
	cfg Config
}

// New creates a disconnected SQLite adapter.
// If logger is nil, a discard logger is used.
func New(cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{
		BaseSQLAdapter: adapter.NewBaseSQLAdapter(adapter.SQLiteDialect, cfg.PrimaryKeyColumn, logger),
		cfg:            cfg,
	}
}

// Config returns the adapter's configuration.
func (a *Adapter) Config() Config {
	return a.cfg
}

// Connect opens the database file, creating it if needed.
// The pool holds a single connection so ":memory:" databases and pending
// transactions always see the same handle.
func (a *Adapter) Connect(ctx context.Context) error {
	a.Logger.Debug("opening sqlite database", slog.String("path", a.cfg.DBPath))
	return a.OpenDB(ctx, "sqlite", a.cfg.DSN(), func(db *sql.DB) {
		db.SetMaxOpenConns(1)
	})
}

// Insert writes rows in one transaction. With ReturnInserted each row goes
// through a prepared statement so its rowid can be collected, and the rows
// are then re-read by primary key in insertion order.
func (a *Adapter) Insert(ctx context.Context, table string, rows []map[string]any, opts core.InsertOptions) (*core.WriteResult, error) {
	if !opts.ReturnInserted {
		return a.BaseSQLAdapter.Insert(ctx, table, rows, opts)
	}
	if err := a.RequireConnected(); err != nil {
		return nil, err
	}
	if _, err := adapter.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	cols, err := adapter.InsertColumns(rows)
	if err != nil {
		return nil, err
	}

	query := adapter.BuildInsertRow(a.Dialect, table, cols)
	a.Logger.Debug("insert", "table", table, "rows", len(rows), "sql", query)

	res := &core.WriteResult{}
	err = a.WithTx(ctx, true, func(tx *sql.Tx) error {
		if err := a.RequireKeyColumn(ctx, tx, table); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		keys := make([]any, 0, len(rows))
		for _, row := range rows {
			r, err := stmt.ExecContext(ctx, adapter.RowValues(row, cols)...)
			if err != nil {
				return err
			}
			id, err := r.LastInsertId()
			if err != nil {
				return err
			}
			keys = append(keys, id)
		}

		rs, err := a.SelectByKeys(ctx, tx, table, keys)
		if err != nil {
			return err
		}
		if err := adapter.ApplyTransform(rs, opts.Transform); err != nil {
			return err
		}
		res.RowsAffected = int64(len(rows))
		res.Records = rs
		return nil
	})
	if err != nil {
		return nil, adapter.WrapError(core.CodeInsert, "insert", err)
	}
	return res, nil
}

// TableExists checks sqlite_master for a table named table.
func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	if err := a.RequireConnected(); err != nil {
		return false, err
	}
	if _, err := adapter.ValidateIdentifier(table); err != nil {
		return false, err
	}

	var n int
	err := a.Reader().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
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

	rows, err := a.Reader().QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		a.RollbackPending()
		return nil, adapter.WrapError(core.CodeTableInfo, "table_info", err)
	}
	rs, err := adapter.ScanRecords(rows)
	if err != nil {
		a.RollbackPending()
		return nil, adapter.WrapError(core.CodeTableInfo, "table_info", err)
	}
	if rs.Empty() {
		return nil, adapter.TableNotFound(table)
	}

	infos, err := adapter.ColumnInfosFromPragma(rs)
	if err != nil {
		return nil, adapter.WrapError(core.CodeTableInfo, "table_info", err)
	}
	return infos, nil
}

// SQLDB returns the connection pool for migrations.
func (a *Adapter) SQLDB() (*sql.DB, error) {
	if err := a.RequireConnected(); err != nil {
		return nil, err
	}
	return a.DB, nil
}

// GooseDialect returns the goose dialect name.
func (a *Adapter) GooseDialect() string {
	return "sqlite3"
}

var (
	_ adapter.Connection    = (*Adapter)(nil)
	_ adapter.SQLDBProvider = (*Adapter)(nil)
)
