package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapconn/pkg/core"
)

// Querier is the subset of *sql.DB and *sql.Tx used to run statements.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BaseSQLAdapter provides common database/sql functionality for backends.
// Embed it in a concrete backend to get Execute, Insert, Select, Update,
// Delete and the transaction methods. Backends supply Connect, TableExists
// and TableInfo, and override Insert or Update where the engine needs a
// different strategy.
type BaseSQLAdapter struct {
	DB         *sql.DB
	Dialect    *Dialect
	Logger     *slog.Logger
	PrimaryKey string

	tx *sql.Tx
}

// NewBaseSQLAdapter returns a disconnected base for dialect d.
// A nil logger discards output.
func NewBaseSQLAdapter(d *Dialect, primaryKey string, logger *slog.Logger) BaseSQLAdapter {
	return BaseSQLAdapter{
		Dialect:    d,
		Logger:     SessionLogger(logger, d.Name),
		PrimaryKey: primaryKey,
	}
}

// SessionLogger tags logger with the backend and a fresh session id.
func SessionLogger(logger *slog.Logger, backend string) *slog.Logger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return logger.With("backend", backend, "session", uuid.NewString())
}

// NotConnectedError is returned by operations on a closed connection.
func NotConnectedError() error {
	return core.NewResourceError(core.CodeNotConnected, "connection is not open, call Connect first", core.ErrNotConnected)
}

// WrapError leaves typed errors alone and wraps anything else from the
// engine in a *core.DatabaseError.
func WrapError(code, op string, err error) error {
	if err == nil {
		return nil
	}
	if core.ErrorCode(err) != "" {
		return err
	}
	return core.NewDatabaseError(code, op, "operation failed", err)
}

// Backend returns the backend token.
func (b *BaseSQLAdapter) Backend() string {
	return b.Dialect.Name
}

// OpenDB opens and pings a database/sql pool. tune, if not nil, adjusts the
// pool before the ping. Failures close the pool and return a *core.ResourceError.
func (b *BaseSQLAdapter) OpenDB(ctx context.Context, driverName, dsn string, tune func(*sql.DB)) error {
	if b.DB != nil {
		return nil
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return core.NewResourceError(core.CodeConnection, "failed to open "+b.Dialect.Name+" database", err)
	}
	if tune != nil {
		tune(db)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return core.NewResourceError(core.CodeConnection, "failed to connect to "+b.Dialect.Name+" database", err)
	}

	b.DB = db
	b.Logger.Debug("connected")
	return nil
}

// Disconnect rolls back any pending transaction and closes the pool.
func (b *BaseSQLAdapter) Disconnect() error {
	if b.DB == nil {
		return nil
	}
	if b.tx != nil {
		b.rollback(b.tx)
		b.tx = nil
	}

	b.Logger.Debug("closing database connection")
	err := b.DB.Close()
	b.DB = nil
	if err != nil {
		return core.NewResourceError(core.CodeDisconnect, "failed to close connection", err)
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// RequireConnected returns NotConnectedError when the pool is closed.
func (b *BaseSQLAdapter) RequireConnected() error {
	if b.DB == nil {
		return NotConnectedError()
	}
	return nil
}

// InTransaction reports whether a pending transaction is open.
func (b *BaseSQLAdapter) InTransaction() bool {
	return b.tx != nil
}

// Commit commits the pending transaction. Without one it does nothing.
func (b *BaseSQLAdapter) Commit() error {
	if err := b.RequireConnected(); err != nil {
		return err
	}
	if b.tx == nil {
		return nil
	}
	tx := b.tx
	b.tx = nil
	if err := tx.Commit(); err != nil {
		return core.NewDatabaseError(core.CodeCommit, "commit", "failed to commit transaction", err)
	}
	return nil
}

// Rollback discards the pending transaction. Without one it does nothing.
func (b *BaseSQLAdapter) Rollback() error {
	if err := b.RequireConnected(); err != nil {
		return err
	}
	if b.tx == nil {
		return nil
	}
	tx := b.tx
	b.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return core.NewDatabaseError(core.CodeRollback, "rollback", "failed to roll back transaction", err)
	}
	return nil
}

// Reader returns the handle reads should go through: the pending
// transaction when one is open, so callers see their own writes.
func (b *BaseSQLAdapter) Reader() Querier {
	if b.tx != nil {
		return b.tx
	}
	return b.DB
}

// WithTx runs fn inside the pending transaction, opening one if needed.
// If fn fails the transaction is rolled back and fn's error returned.
// Otherwise the transaction is committed when commit is set and left
// pending when it is not.
func (b *BaseSQLAdapter) WithTx(ctx context.Context, commit bool, fn func(tx *sql.Tx) error) error {
	tx := b.tx
	b.tx = nil
	if tx == nil {
		var err error
		// A pending transaction outlives the call that opened it.
		tx, err = b.DB.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		b.rollback(tx)
		return err
	}

	if !commit {
		b.tx = tx
		return nil
	}
	if err := tx.Commit(); err != nil {
		return core.NewDatabaseError(core.CodeCommit, "commit", "failed to commit transaction", err)
	}
	return nil
}

// RollbackPending rolls back the pending transaction after a failed read.
func (b *BaseSQLAdapter) RollbackPending() {
	if b.tx != nil {
		b.rollback(b.tx)
		b.tx = nil
	}
}

func (b *BaseSQLAdapter) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		b.Logger.Warn("rollback failed", "error", err)
	} else {
		b.Logger.Debug("transaction rolled back")
	}
}

// Execute runs raw SQL. Statements that produce rows return them in
// Result.Records and report their count as RowsAffected.
func (b *BaseSQLAdapter) Execute(ctx context.Context, query string, params []any, commit bool) (*core.Result, error) {
	if err := b.RequireConnected(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, core.NewValidationError(core.CodeInvalidArguments, "sql cannot be empty")
	}

	b.Logger.Debug("execute", "sql", query, "commit", commit)
	res := &core.Result{}
	err := b.WithTx(ctx, commit, func(tx *sql.Tx) error {
		if ReturnsRows(query) {
			rows, err := tx.QueryContext(ctx, query, params...)
			if err != nil {
				return err
			}
			rs, err := ScanRecords(rows)
			if err != nil {
				return err
			}
			res.Records = rs
			res.RowsAffected = int64(rs.Len())
			return nil
		}

		r, err := tx.ExecContext(ctx, query, params...)
		if err != nil {
			return err
		}
		res.RowsAffected, _ = r.RowsAffected()
		res.LastInsertID, _ = r.LastInsertId()
		return nil
	})
	if err != nil {
		return nil, WrapError(core.CodeExecute, "execute", err)
	}
	return res, nil
}

// Insert writes rows with one multi-row INSERT. With ReturnInserted the
// statement uses RETURNING *, so the dialect must support it.
func (b *BaseSQLAdapter) Insert(ctx context.Context, table string, rows []map[string]any, opts core.InsertOptions) (*core.WriteResult, error) {
	if err := b.RequireConnected(); err != nil {
		return nil, err
	}
	returning := opts.ReturnInserted && b.Dialect.SupportsReturning
	stmt, _, err := BuildInsert(b.Dialect, table, rows, returning)
	if err != nil {
		return nil, err
	}

	b.Logger.Debug("insert", "table", table, "rows", len(rows), "sql", stmt.SQL)
	res := &core.WriteResult{}
	err = b.WithTx(ctx, true, func(tx *sql.Tx) error {
		if !returning {
			r, err := tx.ExecContext(ctx, stmt.SQL, stmt.Args...)
			if err != nil {
				return err
			}
			res.RowsAffected, _ = r.RowsAffected()
			return nil
		}
		return b.queryInto(ctx, tx, stmt, opts.Transform, res)
	})
	if err != nil {
		return nil, WrapError(core.CodeInsert, "insert", err)
	}
	return res, nil
}

// Select reads rows through Reader and applies the transform.
func (b *BaseSQLAdapter) Select(ctx context.Context, table string, opts core.SelectOptions) (*core.RecordSet, error) {
	if err := b.RequireConnected(); err != nil {
		return nil, err
	}
	stmt, err := BuildSelect(b.Dialect, table, opts)
	if err != nil {
		return nil, err
	}

	b.Logger.Debug("select", "table", table, "sql", stmt.SQL)
	rows, err := b.Reader().QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		b.RollbackPending()
		return nil, WrapError(core.CodeSelect, "select", err)
	}
	rs, err := ScanRecords(rows)
	if err != nil {
		b.RollbackPending()
		return nil, WrapError(core.CodeSelect, "select", err)
	}
	if err := ApplyTransform(rs, opts.Transform); err != nil {
		return nil, err
	}
	return rs, nil
}

// Update sets params on matching rows. With ReturnUpdated the statement
// uses RETURNING *, so the dialect must support it.
func (b *BaseSQLAdapter) Update(ctx context.Context, table string, params map[string]any, filters core.Filters, opts core.UpdateOptions) (*core.WriteResult, error) {
	if err := b.RequireConnected(); err != nil {
		return nil, err
	}
	returning := opts.ReturnUpdated && b.Dialect.SupportsReturning
	stmt, err := BuildUpdate(b.Dialect, table, params, filters, returning)
	if err != nil {
		return nil, err
	}

	b.Logger.Debug("update", "table", table, "sql", stmt.SQL)
	res := &core.WriteResult{}
	err = b.WithTx(ctx, true, func(tx *sql.Tx) error {
		if !returning {
			r, err := tx.ExecContext(ctx, stmt.SQL, stmt.Args...)
			if err != nil {
				return err
			}
			res.RowsAffected, _ = r.RowsAffected()
			return nil
		}
		return b.queryInto(ctx, tx, stmt, opts.Transform, res)
	})
	if err != nil {
		return nil, WrapError(core.CodeUpdate, "update", err)
	}
	return res, nil
}

// Delete removes matching rows and returns the count.
func (b *BaseSQLAdapter) Delete(ctx context.Context, table string, filters core.Filters) (int64, error) {
	if err := b.RequireConnected(); err != nil {
		return 0, err
	}
	stmt, err := BuildDelete(b.Dialect, table, filters)
	if err != nil {
		return 0, err
	}

	b.Logger.Debug("delete", "table", table, "sql", stmt.SQL)
	var n int64
	err = b.WithTx(ctx, true, func(tx *sql.Tx) error {
		r, err := tx.ExecContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return err
		}
		n, _ = r.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, WrapError(core.CodeDelete, "delete", err)
	}
	return n, nil
}

// SelectByKeys re-reads the rows whose primary key is in keys, in key order.
func (b *BaseSQLAdapter) SelectByKeys(ctx context.Context, q Querier, table string, keys []any) (*core.RecordSet, error) {
	if len(keys) == 0 {
		return b.EmptyResult(ctx, q, table)
	}
	stmt := BuildSelectByKeys(b.Dialect, table, b.PrimaryKey, keys)
	rows, err := q.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}
	return ScanRecords(rows)
}

// EmptyResult returns an empty RecordSet carrying table's column names.
func (b *BaseSQLAdapter) EmptyResult(ctx context.Context, q Querier, table string) (*core.RecordSet, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", table))
	if err != nil {
		return nil, err
	}
	return ScanRecords(rows)
}

// RequireKeyColumn checks that table has the configured primary key
// column, which key-based re-reads depend on.
func (b *BaseSQLAdapter) RequireKeyColumn(ctx context.Context, q Querier, table string) error {
	if b.PrimaryKey == "" {
		return core.NewValidationError(core.CodeNoPrimaryKey, "no primary key column configured")
	}
	rs, err := b.EmptyResult(ctx, q, table)
	if err != nil {
		return err
	}
	if rs.ColumnIndex(b.PrimaryKey) < 0 {
		return core.NewValidationError(core.CodeNoPrimaryKey,
			"table %q has no primary key column %q", table, b.PrimaryKey)
	}
	return nil
}

func (b *BaseSQLAdapter) queryInto(ctx context.Context, q Querier, stmt Statement, t core.Transform, res *core.WriteResult) error {
	rows, err := q.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return err
	}
	rs, err := ScanRecords(rows)
	if err != nil {
		return err
	}
	if err := ApplyTransform(rs, t); err != nil {
		return err
	}
	res.RowsAffected = int64(rs.Len())
	res.Records = rs
	return nil
}

var (
	leadingNoise  = regexp.MustCompile(`^(?:\s+|--[^\n]*(?:\n|$)|/\*(?s:.*?)\*/|\()+`)
	leadingWord   = regexp.MustCompile(`^[A-Za-z]+`)
	returningWord = regexp.MustCompile(`(?i)\bRETURNING\b`)

	rowStatements = map[string]bool{
		"SELECT": true, "WITH": true, "VALUES": true, "TABLE": true, "FROM": true,
		"PRAGMA": true, "SHOW": true, "EXPLAIN": true, "DESCRIBE": true, "DESC": true,
		"SUMMARIZE": true,
	}
)

// ReturnsRows reports whether query is expected to produce a result set.
// It looks at the leading keyword, skipping comments and parentheses, and
// at any RETURNING clause.
func ReturnsRows(query string) bool {
	q := leadingNoise.ReplaceAllString(query, "")
	word := strings.ToUpper(leadingWord.FindString(q))
	if rowStatements[word] {
		return true
	}
	return returningWord.MatchString(q)
}
