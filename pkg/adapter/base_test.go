package adapter

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapconn/internal/testutil"
	"github.com/leapstack-labs/leapconn/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBase(t *testing.T) (*BaseSQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	base := NewBaseSQLAdapter(SQLiteDialect, "id", testutil.NewTestLogger(t))
	base.DB = db
	return &base, mock
}

func TestBaseSQLAdapter_Disconnect(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		pending   bool
	}{
		{
			name:    "disconnect with nil DB",
			setupDB: false,
		},
		{
			name:    "disconnect with open DB",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectClose()
			},
		},
		{
			name:    "disconnect rolls back pending transaction",
			setupDB: true,
			pending: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectRollback()
				mock.ExpectClose()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			base := &BaseSQLAdapter{Dialect: SQLiteDialect, Logger: testutil.NewTestLogger(t)}

			var mock sqlmock.Sqlmock
			if tt.setupDB {
				base, mock = newMockBase(t)
				tt.setupMock(mock)
			}
			if tt.pending {
				_, err := base.Execute(ctx, "INSERT INTO t (a) VALUES (1)", nil, false)
				require.NoError(t, err)
				require.True(t, base.InTransaction())
			}

			require.NoError(t, base.Disconnect())
			assert.False(t, base.IsConnected())
			assert.False(t, base.InTransaction())

			// Idempotent.
			require.NoError(t, base.Disconnect())

			if mock != nil {
				assert.NoError(t, mock.ExpectationsWereMet())
			}
		})
	}
}

func TestBaseSQLAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	base := NewBaseSQLAdapter(SQLiteDialect, "id", nil)

	_, err := base.Execute(ctx, "SELECT 1", nil, true)
	assert.Equal(t, core.CodeNotConnected, core.ErrorCode(err))
	assert.ErrorIs(t, err, core.ErrNotConnected)

	_, err = base.Select(ctx, "users", core.SelectOptions{})
	assert.True(t, core.IsResource(err))

	_, err = base.Insert(ctx, "users", []map[string]any{{"a": 1}}, core.InsertOptions{})
	assert.True(t, core.IsResource(err))

	_, err = base.Update(ctx, "users", map[string]any{"a": 1}, nil, core.UpdateOptions{})
	assert.True(t, core.IsResource(err))

	_, err = base.Delete(ctx, "users", nil)
	assert.True(t, core.IsResource(err))

	assert.True(t, core.IsResource(base.Commit()))
	assert.True(t, core.IsResource(base.Rollback()))
}

func TestBaseSQLAdapter_Execute(t *testing.T) {
	tests := []struct {
		name         string
		setupMock    func(mock sqlmock.Sqlmock)
		sql          string
		params       []any
		commit       bool
		expectErr    string
		wantAffected int64
		wantRecords  bool
		wantPending  bool
	}{
		{
			name: "exec committed",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("CREATE TABLE users").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			sql:    "CREATE TABLE users (id INT)",
			commit: true,
		},
		{
			name: "exec with params",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE users").WithArgs("bob", int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			sql:          "UPDATE users SET name = ? WHERE id = ?",
			params:       []any{"bob", int64(1)},
			commit:       true,
			wantAffected: 1,
		},
		{
			name: "query returns records",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT id").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
				mock.ExpectCommit()
			},
			sql:          "SELECT id FROM users",
			commit:       true,
			wantAffected: 2,
			wantRecords:  true,
		},
		{
			name: "uncommitted stays pending",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 3))
			},
			sql:          "DELETE FROM users",
			wantAffected: 3,
			wantPending:  true,
		},
		{
			name: "failure rolls back",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INVALID SQL").WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			sql:       "INVALID SQL",
			commit:    true,
			expectErr: core.CodeExecute,
		},
		{
			name:      "empty sql",
			setupMock: func(sqlmock.Sqlmock) {},
			sql:       "   ",
			expectErr: core.CodeInvalidArguments,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, mock := newMockBase(t)
			tt.setupMock(mock)

			res, err := base.Execute(context.Background(), tt.sql, tt.params, tt.commit)
			if tt.expectErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectErr, core.ErrorCode(err))
				assert.True(t, base.IsConnected(), "failures leave the connection open")
				assert.False(t, base.InTransaction())
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantAffected, res.RowsAffected)
				assert.Equal(t, tt.wantRecords, res.Records != nil)
				assert.Equal(t, tt.wantPending, base.InTransaction())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBaseSQLAdapter_PendingTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("later statements join and commit", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)))
		mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		_, err := base.Execute(ctx, "INSERT INTO t (a) VALUES (1)", nil, false)
		require.NoError(t, err)
		rs, err := base.Select(ctx, "t", core.SelectOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, rs.Len())
		_, err = base.Execute(ctx, "INSERT INTO t (a) VALUES (2)", nil, true)
		require.NoError(t, err)
		assert.False(t, base.InTransaction())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("explicit commit", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		_, err := base.Execute(ctx, "INSERT INTO t (a) VALUES (1)", nil, false)
		require.NoError(t, err)
		require.NoError(t, base.Commit())
		assert.False(t, base.InTransaction())
		require.NoError(t, base.Commit(), "commit without a transaction does nothing")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("explicit rollback", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectRollback()

		_, err := base.Execute(ctx, "INSERT INTO t (a) VALUES (1)", nil, false)
		require.NoError(t, err)
		require.NoError(t, base.Rollback())
		assert.False(t, base.InTransaction())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit().WillReturnError(assert.AnError)

		_, err := base.Execute(ctx, "INSERT INTO t (a) VALUES (1)", nil, false)
		require.NoError(t, err)
		err = base.Commit()
		assert.Equal(t, core.CodeCommit, core.ErrorCode(err))
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("failed read rolls back pending work", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)
		mock.ExpectRollback()

		_, err := base.Execute(ctx, "INSERT INTO t (a) VALUES (1)", nil, false)
		require.NoError(t, err)
		_, err = base.Select(ctx, "t", core.SelectOptions{})
		assert.Equal(t, core.CodeSelect, core.ErrorCode(err))
		assert.False(t, base.InTransaction())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBaseSQLAdapter_Insert(t *testing.T) {
	ctx := context.Background()
	rows := []map[string]any{
		{"name": "Alice", "age": int64(30)},
		{"name": "Bob", "age": int64(25)},
	}

	t.Run("multi row", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (age, name) VALUES (?, ?), (?, ?)")).
			WithArgs(int64(30), "Alice", int64(25), "Bob").
			WillReturnResult(sqlmock.NewResult(2, 2))
		mock.ExpectCommit()

		res, err := base.Insert(ctx, "users", rows, core.InsertOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.RowsAffected)
		assert.Nil(t, res.Records)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returning", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (age, name) VALUES (?, ?), (?, ?) RETURNING *")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).
				AddRow(int64(1), "Alice", int64(30)).
				AddRow(int64(2), "Bob", int64(25)))
		mock.ExpectCommit()

		res, err := base.Insert(ctx, "users", rows, core.InsertOptions{ReturnInserted: true})
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.RowsAffected)
		require.NotNil(t, res.Records)
		assert.Equal(t, []any{int64(1), int64(2)}, res.Records.Column("id"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("engine failure rolls back", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT").WillReturnError(assert.AnError)
		mock.ExpectRollback()

		_, err := base.Insert(ctx, "users", rows, core.InsertOptions{})
		require.Error(t, err)
		assert.Equal(t, core.CodeInsert, core.ErrorCode(err))
		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("validation happens before any statement", func(t *testing.T) {
		base, mock := newMockBase(t)

		_, err := base.Insert(ctx, "users", nil, core.InsertOptions{})
		assert.Equal(t, core.CodeEmptyRows, core.ErrorCode(err))
		_, err = base.Insert(ctx, "bad table", rows, core.InsertOptions{})
		assert.Equal(t, core.CodeInvalidIdentifier, core.ErrorCode(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBaseSQLAdapter_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("no match", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name = ? WHERE id = ?")).
			WithArgs("X", int64(999)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		res, err := base.Update(ctx, "users", map[string]any{"name": "X"}, core.Filters{"id": int64(999)}, core.UpdateOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.RowsAffected)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil filters update every row", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = ?")+"$").
			WillReturnResult(sqlmock.NewResult(0, 5))
		mock.ExpectCommit()

		res, err := base.Update(ctx, "users", map[string]any{"active": false}, nil, core.UpdateOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(5), res.RowsAffected)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returning with transform", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET name = ? WHERE id = ? RETURNING *")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "X"))
		mock.ExpectCommit()

		res, err := base.Update(ctx, "users", map[string]any{"name": "X"}, core.Filters{"id": int64(1)},
			core.UpdateOptions{ReturnUpdated: true, Transform: core.Transform{DTypes: map[string]core.DType{"id": core.DTypeString}}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.RowsAffected)
		assert.Equal(t, []any{"1", "X"}, res.Records.Rows[0])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty params", func(t *testing.T) {
		base, mock := newMockBase(t)
		_, err := base.Update(ctx, "users", map[string]any{}, nil, core.UpdateOptions{})
		assert.Equal(t, core.CodeEmptyParameters, core.ErrorCode(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBaseSQLAdapter_Delete(t *testing.T) {
	base, mock := newMockBase(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := base.Delete(context.Background(), "users", core.Filters{"id": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = base.Delete(context.Background(), "users", core.Filters{"id": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_RequireKeyColumn(t *testing.T) {
	base, mock := newMockBase(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE 1 = 0")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM events WHERE 1 = 0")).
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}))

	ctx := context.Background()
	require.NoError(t, base.RequireKeyColumn(ctx, base.DB, "users"))

	err := base.RequireKeyColumn(ctx, base.DB, "events")
	assert.Equal(t, core.CodeNoPrimaryKey, core.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnsRows(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", true},
		{"  select * from t", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"(SELECT 1) UNION (SELECT 2)", true},
		{"-- comment\nSELECT 1", true},
		{"/* block */ PRAGMA table_info(t)", true},
		{"SHOW TABLES", true},
		{"VALUES (1), (2)", true},
		{"INSERT INTO t (a) VALUES (1) RETURNING id", true},
		{"INSERT INTO t (a) VALUES (1)", false},
		{"UPDATE t SET a = 1", false},
		{"CREATE TABLE t (id INTEGER)", false},
		{"DELETE FROM returning_log", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, ReturnsRows(tt.sql))
		})
	}
}
