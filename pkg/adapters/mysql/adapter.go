// Package mysql provides the MySQL backend, built on
// github.com/go-sql-driver/mysql.
//
// MySQL has no RETURNING clause, so written rows are re-read by primary
// key inside the writing transaction.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/leapstack-labs/leapconn/pkg/core"
)

// Adapter implements adapter.Connection for MySQL.
type Adapter struct {
	adapter.BaseSQLAdapter
	cfg Config
}

// New creates a disconnected MySQL adapter.
// If logger is nil, a discard logger is used.
func New(cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{
		BaseSQLAdapter: adapter.NewBaseSQLAdapter(adapter.MySQLDialect, cfg.PrimaryKeyColumn, logger),
		cfg:            cfg,
	}
}

// Config returns the adapter's configuration.
func (a *Adapter) Config() Config {
	return a.cfg
}

// Connect opens the pool and pings the server.
func (a *Adapter) Connect(ctx context.Context) error {
	a.Logger.Debug("connecting to mysql",
		slog.String("host", a.cfg.Host),
		slog.Int("port", a.cfg.Port),
		slog.String("database", a.cfg.Database))
	return a.OpenDB(ctx, "mysql", a.cfg.DSN(), func(db *sql.DB) {
		db.SetMaxIdleConns(a.cfg.PoolSize)
		db.SetMaxOpenConns(a.cfg.PoolSize + a.cfg.MaxOverflow)
	})
}

// Insert writes rows with one multi-row INSERT. With ReturnInserted the
// batch's keys are derived from the first generated id and the row count,
// then the rows are read back in the same transaction.
func (a *Adapter) Insert(ctx context.Context, table string, rows []map[string]any, opts core.InsertOptions) (*core.WriteResult, error) {
	if !opts.ReturnInserted {
		return a.BaseSQLAdapter.Insert(ctx, table, rows, opts)
	}
	if err := a.RequireConnected(); err != nil {
		return nil, err
	}
	stmt, _, err := adapter.BuildInsert(a.Dialect, table, rows, false)
	if err != nil {
		return nil, err
	}

	a.Logger.Debug("insert", "table", table, "rows", len(rows), "sql", stmt.SQL)
	res := &core.WriteResult{}
	err = a.WithTx(ctx, true, func(tx *sql.Tx) error {
		if err := a.RequireKeyColumn(ctx, tx, table); err != nil {
			return err
		}

		r, err := tx.ExecContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return err
		}
		first, err := r.LastInsertId()
		if err != nil {
			return err
		}
		n, err := r.RowsAffected()
		if err != nil {
			return err
		}

		keys := make([]any, n)
		for i := range keys {
			keys[i] = first + int64(i)
		}
		rs, err := a.SelectByKeys(ctx, tx, table, keys)
		if err != nil {
			return err
		}
		if err := adapter.ApplyTransform(rs, opts.Transform); err != nil {
			return err
		}
		res.RowsAffected = n
		res.Records = rs
		return nil
	})
	if err != nil {
		return nil, adapter.WrapError(core.CodeInsert, "insert", err)
	}
	return res, nil
}

// Update sets params on matching rows. With ReturnUpdated the matching keys
// are locked first, then the rows are read back by key after the update.
func (a *Adapter) Update(ctx context.Context, table string, params map[string]any, filters core.Filters, opts core.UpdateOptions) (*core.WriteResult, error) {
	if !opts.ReturnUpdated {
		return a.BaseSQLAdapter.Update(ctx, table, params, filters, opts)
	}
	if err := a.RequireConnected(); err != nil {
		return nil, err
	}
	stmt, err := adapter.BuildUpdate(a.Dialect, table, params, filters, false)
	if err != nil {
		return nil, err
	}
	where, whereArgs, err := adapter.BuildWhere(a.Dialect, filters, 1)
	if err != nil {
		return nil, err
	}
	lock := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s FOR UPDATE", a.PrimaryKey, table, where, a.PrimaryKey)

	a.Logger.Debug("update", "table", table, "sql", stmt.SQL)
	res := &core.WriteResult{}
	err = a.WithTx(ctx, true, func(tx *sql.Tx) error {
		if err := a.RequireKeyColumn(ctx, tx, table); err != nil {
			return err
		}

		keys, err := lockKeys(ctx, tx, lock, whereArgs)
		if err != nil {
			return err
		}
		r, err := tx.ExecContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return err
		}
		res.RowsAffected, _ = r.RowsAffected()

		rs, err := a.SelectByKeys(ctx, tx, table, keys)
		if err != nil {
			return err
		}
		if err := adapter.ApplyTransform(rs, opts.Transform); err != nil {
			return err
		}
		res.Records = rs
		return nil
	})
	if err != nil {
		return nil, adapter.WrapError(core.CodeUpdate, "update", err)
	}
	return res, nil
}

func lockKeys(ctx context.Context, tx *sql.Tx, query string, args []any) ([]any, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []any
	for rows.Next() {
		var k any
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, adapter.NormalizeValue(k))
	}
	return keys, rows.Err()
}

// TableExists checks information_schema in the current database.
func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	if err := a.RequireConnected(); err != nil {
		return false, err
	}
	if _, err := adapter.ValidateIdentifier(table); err != nil {
		return false, err
	}

	var n int
	err := a.Reader().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
		table).Scan(&n)
	if err != nil {
		a.RollbackPending()
		return false, adapter.WrapError(core.CodeTableExists, "table_exists", err)
	}
	return n > 0, nil
}

const tableInfoSQL = `SELECT column_name, column_type, is_nullable, column_default, column_key
FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY ordinal_position`

// TableInfo describes table from information_schema.columns.
func (a *Adapter) TableInfo(ctx context.Context, table string) (core.ColumnInfos, error) {
	if err := a.RequireConnected(); err != nil {
		return nil, err
	}
	if _, err := adapter.ValidateIdentifier(table); err != nil {
		return nil, err
	}

	infos, err := a.scanColumns(ctx, table)
	if err != nil {
		a.RollbackPending()
		return nil, adapter.WrapError(core.CodeTableInfo, "table_info", err)
	}
	if len(infos) == 0 {
		return nil, adapter.TableNotFound(table)
	}
	return infos, nil
}

func (a *Adapter) scanColumns(ctx context.Context, table string) (core.ColumnInfos, error) {
	rows, err := a.Reader().QueryContext(ctx, tableInfoSQL, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var infos core.ColumnInfos
	for rows.Next() {
		var (
			name, typ, nullable, key string
			dflt                     sql.NullString
		)
		if err := rows.Scan(&name, &typ, &nullable, &dflt, &key); err != nil {
			return nil, err
		}
		info := core.ColumnInfo{
			Name:       name,
			Type:       typ,
			NotNull:    nullable == "NO",
			PrimaryKey: key == "PRI",
			Position:   len(infos) + 1,
		}
		if dflt.Valid {
			info.Default = &dflt.String
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
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
	return "mysql"
}

var (
	_ adapter.Connection    = (*Adapter)(nil)
	_ adapter.SQLDBProvider = (*Adapter)(nil)
)
