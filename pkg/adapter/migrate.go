package adapter

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"sync"

	"github.com/leapstack-labs/leapconn/pkg/core"
	"github.com/pressly/goose/v3"
)

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// Migrate applies every pending goose migration found in dir of fsys.
// conn must be connected, implement SQLDBProvider and have no pending
// transaction.
func Migrate(ctx context.Context, conn Connection, fsys fs.FS, dir string) error {
	db, dialect, err := migrationTarget(conn)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialect); err != nil {
		return core.NewDatabaseError(core.CodeMigrate, "migrate", "failed to set dialect", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return core.NewDatabaseError(core.CodeMigrate, "migrate", "failed to run migrations", err)
	}
	return nil
}

// MigrationVersion returns the current goose schema version.
func MigrationVersion(ctx context.Context, conn Connection) (int64, error) {
	db, dialect, err := migrationTarget(conn)
	if err != nil {
		return 0, err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(dialect); err != nil {
		return 0, core.NewDatabaseError(core.CodeMigrate, "migrate", "failed to set dialect", err)
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, core.NewDatabaseError(core.CodeMigrate, "migrate", "failed to read schema version", err)
	}
	return v, nil
}

func migrationTarget(conn Connection) (*sql.DB, string, error) {
	p, ok := conn.(SQLDBProvider)
	if !ok {
		return nil, "", core.NewValidationError(core.CodeInvalidArguments,
			"backend %q does not support migrations", conn.Backend())
	}
	if !conn.IsConnected() {
		return nil, "", NotConnectedError()
	}
	if conn.InTransaction() {
		return nil, "", core.NewDatabaseError(core.CodeMigrate, "migrate",
			"a transaction is pending", errors.New("commit or roll back before migrating"))
	}
	db, err := p.SQLDB()
	if err != nil {
		return nil, "", err
	}
	return db, p.GooseDialect(), nil
}
