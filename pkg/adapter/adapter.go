// Package adapter defines the Connection contract shared by every database
// backend, plus the pieces backends build on: identifier validation, SQL
// statement building, row scanning, post-fetch transforms, the backend
// registry and scoped acquisition.
//
// Concrete backends live in pkg/adapters/ subdirectories and register
// themselves from init(). Import pkg/adapters/all to get every backend.
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/leapconn/pkg/core"
)

// Connection is the capability interface every backend implements.
//
// A Connection is owned by one goroutine at a time. Every method except
// Connect, Disconnect, IsConnected and Backend fails with a
// *core.ResourceError (code NOT_CONNECTED) until Connect succeeds.
type Connection interface {
	// Connect opens the native handle. It is a no-op when already connected.
	Connect(ctx context.Context) error

	// Disconnect rolls back any open transaction and releases the handle.
	// Calling it on a closed connection is a no-op.
	Disconnect() error

	// IsConnected reports whether the native handle is open.
	IsConnected() bool

	// Backend returns the registry token of the backend.
	Backend() string

	// Execute runs raw SQL with bound params. With commit set the statement
	// is committed on success; otherwise it joins a pending transaction that
	// stays open until Commit, Rollback, a committing call or Disconnect.
	Execute(ctx context.Context, query string, params []any, commit bool) (*core.Result, error)

	// Insert writes rows in one transaction. All rows must share one column set.
	Insert(ctx context.Context, table string, rows []map[string]any, opts core.InsertOptions) (*core.WriteResult, error)

	// Select reads rows from table.
	Select(ctx context.Context, table string, opts core.SelectOptions) (*core.RecordSet, error)

	// Update sets params on rows matching filters. Nil filters match every row.
	Update(ctx context.Context, table string, params map[string]any, filters core.Filters, opts core.UpdateOptions) (*core.WriteResult, error)

	// Delete removes rows matching filters and returns the count.
	// Nil filters match every row.
	Delete(ctx context.Context, table string, filters core.Filters) (int64, error)

	// TableExists reports whether table exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// TableInfo describes the columns of table in declaration order.
	TableInfo(ctx context.Context, table string) (core.ColumnInfos, error)

	// Commit commits the pending transaction, if any.
	Commit() error

	// Rollback discards the pending transaction, if any.
	Rollback() error

	// InTransaction reports whether a pending transaction is open.
	InTransaction() bool
}

// SQLDBProvider is implemented by backends that can expose a database/sql
// handle, which migrations need.
type SQLDBProvider interface {
	// SQLDB returns a *sql.DB for the open connection.
	SQLDB() (*sql.DB, error)

	// GooseDialect returns the goose dialect name for the backend.
	GooseDialect() string
}
