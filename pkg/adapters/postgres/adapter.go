// Package postgres provides the PostgreSQL backend, built on a pgx
// connection pool.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/leapstack-labs/leapconn/pkg/core"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Adapter implements adapter.Connection for PostgreSQL.
// Every statement runs in an explicit pgx.Tx that is committed or rolled
// back before the call returns, unless Execute was asked not to commit.
type Adapter struct {
	cfg    Config
	pool   *pgxpool.Pool
	tx     pgx.Tx
	sqlDB  *sql.DB
	logger *slog.Logger
}

// New creates a disconnected PostgreSQL adapter.
// If logger is nil, a discard logger is used.
func New(cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{
		cfg:    cfg,
		logger: adapter.SessionLogger(logger, "postgres"),
	}
}

// Config returns the adapter's configuration.
func (a *Adapter) Config() Config {
	return a.cfg
}

// Backend returns the backend token.
func (a *Adapter) Backend() string {
	return "postgres"
}

// Connect creates the pool and verifies the server is reachable.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.pool != nil {
		return nil
	}

	pc, err := a.cfg.PoolConfig()
	if err != nil {
		return err
	}

	a.logger.Debug("connecting to postgres",
		slog.String("host", a.cfg.Host),
		slog.String("database", a.cfg.Database),
		slog.Int("max_conns", int(pc.MaxConns)))

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return core.NewResourceError(core.CodeConnection, "failed to create postgres pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return core.NewResourceError(core.CodeConnection, "failed to connect to postgres", err)
	}

	a.pool = pool
	return nil
}

// Disconnect rolls back any pending transaction and closes the pool.
func (a *Adapter) Disconnect() error {
	if a.pool == nil {
		return nil
	}
	if a.tx != nil {
		a.rollback(a.tx)
		a.tx = nil
	}

	var err error
	if a.sqlDB != nil {
		err = a.sqlDB.Close()
		a.sqlDB = nil
	}
	a.logger.Debug("closing postgres pool")
	a.pool.Close()
	a.pool = nil

	if err != nil {
		return core.NewResourceError(core.CodeDisconnect, "failed to close connection", err)
	}
	return nil
}

// IsConnected reports whether the pool is open.
func (a *Adapter) IsConnected() bool {
	return a.pool != nil
}

// InTransaction reports whether a pending transaction is open.
func (a *Adapter) InTransaction() bool {
	return a.tx != nil
}

func (a *Adapter) requireConnected() error {
	if a.pool == nil {
		return adapter.NotConnectedError()
	}
	return nil
}

// Commit commits the pending transaction. Without one it does nothing.
func (a *Adapter) Commit() error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	if a.tx == nil {
		return nil
	}
	tx := a.tx
	a.tx = nil
	if err := tx.Commit(context.Background()); err != nil {
		return core.NewDatabaseError(core.CodeCommit, "commit", "failed to commit transaction", err)
	}
	return nil
}

// Rollback discards the pending transaction. Without one it does nothing.
func (a *Adapter) Rollback() error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	if a.tx == nil {
		return nil
	}
	tx := a.tx
	a.tx = nil
	if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return core.NewDatabaseError(core.CodeRollback, "rollback", "failed to roll back transaction", err)
	}
	return nil
}

func (a *Adapter) rollback(tx pgx.Tx) {
	if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		a.logger.Warn("rollback failed", "error", err)
	} else {
		a.logger.Debug("transaction rolled back")
	}
}

func (a *Adapter) rollbackPending() {
	if a.tx != nil {
		a.rollback(a.tx)
		a.tx = nil
	}
}

// reader returns the pending transaction when one is open.
func (a *Adapter) reader() querier {
	if a.tx != nil {
		return a.tx
	}
	return a.pool
}

// withTx runs fn in the pending transaction or a new one. On failure the
// transaction is rolled back; on success it is committed when commit is set.
func (a *Adapter) withTx(ctx context.Context, commit bool, fn func(tx pgx.Tx) error) error {
	tx := a.tx
	a.tx = nil
	if tx == nil {
		var err error
		tx, err = a.pool.Begin(ctx)
		if err != nil {
			return err
		}
	}

	if err := fn(tx); err != nil {
		a.rollback(tx)
		return err
	}

	if !commit {
		a.tx = tx
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return core.NewDatabaseError(core.CodeCommit, "commit", "failed to commit transaction", err)
	}
	return nil
}

// Execute runs raw SQL. Statements that produce rows return them in
// Result.Records; RowsAffected comes from the command tag.
func (a *Adapter) Execute(ctx context.Context, query string, params []any, commit bool) (*core.Result, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, core.NewValidationError(core.CodeInvalidArguments, "sql cannot be empty")
	}

	a.logger.Debug("execute", "sql", query, "commit", commit)
	res := &core.Result{}
	err := a.withTx(ctx, commit, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, params...)
		if err != nil {
			return err
		}
		rs, err := scanRows(rows)
		if err != nil {
			return err
		}
		if len(rs.Columns) > 0 {
			res.Records = rs
		}
		res.RowsAffected = rows.CommandTag().RowsAffected()
		return nil
	})
	if err != nil {
		return nil, adapter.WrapError(core.CodeExecute, "execute", err)
	}
	return res, nil
}

// Insert writes rows with one multi-row INSERT. With ReturnInserted the
// stored rows come back through RETURNING *.
func (a *Adapter) Insert(ctx context.Context, table string, rows []map[string]any, opts core.InsertOptions) (*core.WriteResult, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	stmt, _, err := adapter.BuildInsert(adapter.PostgresDialect, table, rows, opts.ReturnInserted)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("insert", "table", table, "rows", len(rows), "sql", stmt.SQL)
	res := &core.WriteResult{}
	err = a.withTx(ctx, true, func(tx pgx.Tx) error {
		return write(ctx, tx, stmt, opts.ReturnInserted, opts.Transform, res)
	})
	if err != nil {
		return nil, adapter.WrapError(core.CodeInsert, "insert", err)
	}
	return res, nil
}

// Select reads rows and applies the transform.
func (a *Adapter) Select(ctx context.Context, table string, opts core.SelectOptions) (*core.RecordSet, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	stmt, err := adapter.BuildSelect(adapter.PostgresDialect, table, opts)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("select", "table", table, "sql", stmt.SQL)
	rows, err := a.reader().Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		a.rollbackPending()
		return nil, adapter.WrapError(core.CodeSelect, "select", err)
	}
	rs, err := scanRows(rows)
	if err != nil {
		a.rollbackPending()
		return nil, adapter.WrapError(core.CodeSelect, "select", err)
	}
	if err := adapter.ApplyTransform(rs, opts.Transform); err != nil {
		return nil, err
	}
	return rs, nil
}

// Update sets params on matching rows. Nil filters match every row.
func (a *Adapter) Update(ctx context.Context, table string, params map[string]any, filters core.Filters, opts core.UpdateOptions) (*core.WriteResult, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	stmt, err := adapter.BuildUpdate(adapter.PostgresDialect, table, params, filters, opts.ReturnUpdated)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("update", "table", table, "sql", stmt.SQL)
	res := &core.WriteResult{}
	err = a.withTx(ctx, true, func(tx pgx.Tx) error {
		return write(ctx, tx, stmt, opts.ReturnUpdated, opts.Transform, res)
	})
	if err != nil {
		return nil, adapter.WrapError(core.CodeUpdate, "update", err)
	}
	return res, nil
}

// Delete removes matching rows and returns the count.
func (a *Adapter) Delete(ctx context.Context, table string, filters core.Filters) (int64, error) {
	if err := a.requireConnected(); err != nil {
		return 0, err
	}
	stmt, err := adapter.BuildDelete(adapter.PostgresDialect, table, filters)
	if err != nil {
		return 0, err
	}

	a.logger.Debug("delete", "table", table, "sql", stmt.SQL)
	var n int64
	err = a.withTx(ctx, true, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, adapter.WrapError(core.CodeDelete, "delete", err)
	}
	return n, nil
}

func write(ctx context.Context, q querier, stmt adapter.Statement, returning bool, t core.Transform, res *core.WriteResult) error {
	if !returning {
		tag, err := q.Exec(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return err
		}
		res.RowsAffected = tag.RowsAffected()
		return nil
	}

	rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return err
	}
	rs, err := scanRows(rows)
	if err != nil {
		return err
	}
	if err := adapter.ApplyTransform(rs, t); err != nil {
		return err
	}
	res.RowsAffected = int64(rs.Len())
	res.Records = rs
	return nil
}

const tableExistsQuery = `
	SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1
	)`

// TableExists checks information_schema in the current schema.
func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	if err := a.requireConnected(); err != nil {
		return false, err
	}
	if _, err := adapter.ValidateIdentifier(table); err != nil {
		return false, err
	}

	var exists bool
	if err := a.reader().QueryRow(ctx, tableExistsQuery, table).Scan(&exists); err != nil {
		a.rollbackPending()
		return false, adapter.WrapError(core.CodeTableExists, "table_exists", err)
	}
	return exists, nil
}

const tableInfoQuery = `
	SELECT
		c.column_name::text,
		c.data_type::text,
		c.is_nullable = 'NO',
		c.column_default::text,
		EXISTS (
			SELECT 1
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
				AND tc.table_name = kcu.table_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = c.table_schema
				AND tc.table_name = c.table_name
				AND kcu.column_name = c.column_name
		),
		c.ordinal_position::int
	FROM information_schema.columns c
	WHERE c.table_schema = current_schema() AND c.table_name = $1
	ORDER BY c.ordinal_position`

// TableInfo describes table from information_schema, including primary
// key membership.
func (a *Adapter) TableInfo(ctx context.Context, table string) (core.ColumnInfos, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	if _, err := adapter.ValidateIdentifier(table); err != nil {
		return nil, err
	}

	rows, err := a.reader().Query(ctx, tableInfoQuery, table)
	if err != nil {
		a.rollbackPending()
		return nil, adapter.WrapError(core.CodeTableInfo, "table_info", err)
	}
	infos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.ColumnInfo, error) {
		var info core.ColumnInfo
		err := row.Scan(&info.Name, &info.Type, &info.NotNull, &info.Default, &info.PrimaryKey, &info.Position)
		return info, err
	})
	if err != nil {
		a.rollbackPending()
		return nil, adapter.WrapError(core.CodeTableInfo, "table_info", err)
	}
	if len(infos) == 0 {
		return nil, adapter.TableNotFound(table)
	}
	return infos, nil
}

// SQLDB returns a database/sql handle backed by the pool, for migrations.
// It is closed by Disconnect.
func (a *Adapter) SQLDB() (*sql.DB, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	if a.sqlDB == nil {
		a.sqlDB = stdlib.OpenDBFromPool(a.pool)
	}
	return a.sqlDB, nil
}

// GooseDialect returns the goose dialect name.
func (a *Adapter) GooseDialect() string {
	return "postgres"
}

// scanRows reads every row into a RecordSet and closes rows.
func scanRows(rows pgx.Rows) (*core.RecordSet, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	rs := core.NewRecordSet(cols...)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// normalizeValue maps pgx values onto the record scalar set.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case driver.Valuer:
		// Intervals, times of day and other pgtype values.
		val, err := x.Value()
		if err != nil {
			return nil
		}
		return adapter.NormalizeValue(val)
	}
	return adapter.NormalizeValue(v)
}

var (
	_ adapter.Connection    = (*Adapter)(nil)
	_ adapter.SQLDBProvider = (*Adapter)(nil)
)
