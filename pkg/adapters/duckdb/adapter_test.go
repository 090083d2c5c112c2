package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapconn/internal/testutil"
	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/leapstack-labs/leapconn/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	adp := New(Config{DBPath: ":memory:", PrimaryKeyColumn: "id"}, testutil.NewTestLogger(t))
	require.NoError(t, adp.Connect(context.Background()))
	t.Cleanup(func() { _ = adp.Disconnect() })

	ctx := context.Background()
	_, err := adp.Execute(ctx, "CREATE SEQUENCE users_seq", nil, true)
	require.NoError(t, err)
	_, err = adp.Execute(ctx, `CREATE TABLE users (
		id INTEGER PRIMARY KEY DEFAULT nextval('users_seq'),
		name VARCHAR NOT NULL,
		score DOUBLE DEFAULT 0
	)`, nil, true)
	require.NoError(t, err)
	return adp
}

func TestAdapter_Connect(t *testing.T) {
	tests := []struct {
		name      string
		setupPath func(t *testing.T) string
		verify    func(t *testing.T, path string)
	}{
		{
			name: "in-memory",
			setupPath: func(_ *testing.T) string {
				return ":memory:"
			},
		},
		{
			name: "file-based",
			setupPath: func(t *testing.T) string {
				tmpDir := t.TempDir()
				return filepath.Join(tmpDir, "test.duckdb")
			},
			verify: func(t *testing.T, path string) {
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "database file was not created")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			dbPath := tt.setupPath(t)
			adp := New(Config{DBPath: dbPath, PrimaryKeyColumn: "id"}, nil)

			require.NoError(t, adp.Connect(ctx))
			defer func() { _ = adp.Disconnect() }()
			assert.Equal(t, "duckdb", adp.Backend())

			if tt.verify != nil {
				tt.verify(t, dbPath)
			}
		})
	}
}

func TestAdapter_NotConnected(t *testing.T) {
	tests := []struct {
		name      string
		operation func(ctx context.Context, adp *Adapter) error
	}{
		{
			name: "execute",
			operation: func(ctx context.Context, adp *Adapter) error {
				_, err := adp.Execute(ctx, "SELECT 1", nil, true)
				return err
			},
		},
		{
			name: "table exists",
			operation: func(ctx context.Context, adp *Adapter) error {
				_, err := adp.TableExists(ctx, "t")
				return err
			},
		},
		{
			name: "table info",
			operation: func(ctx context.Context, adp *Adapter) error {
				_, err := adp.TableInfo(ctx, "t")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adp := New(Config{DBPath: ":memory:", PrimaryKeyColumn: "id"}, nil)
			err := tt.operation(context.Background(), adp)
			require.Error(t, err)
			assert.Equal(t, core.CodeNotConnected, core.ErrorCode(err))
		})
	}
}

func TestAdapter_CRUD(t *testing.T) {
	ctx := context.Background()
	adp := newTestAdapter(t)

	res, err := adp.Insert(ctx, "users", []map[string]any{
		{"name": "alice", "score": 1.5},
		{"name": "bob", "score": 2.5},
	}, core.InsertOptions{ReturnInserted: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)
	require.Equal(t, 2, res.Records.Len())
	assert.Equal(t, []any{"alice", "bob"}, res.Records.Column("name"))
	assert.Equal(t, []any{int64(1), int64(2)}, res.Records.Column("id"))

	rs, err := adp.Select(ctx, "users", core.SelectOptions{
		Columns: []string{"name", "score"},
		Filters: core.Filters{"id": int64(2)},
	})
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, map[string]any{"name": "bob", "score": 2.5}, rs.Record(0).Map())

	upd, err := adp.Update(ctx, "users", map[string]any{"score": 9.0}, core.Filters{"name": "alice"}, core.UpdateOptions{ReturnUpdated: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), upd.RowsAffected)
	score, _ := upd.Records.Value(0, "score")
	assert.Equal(t, 9.0, score)

	upd, err = adp.Update(ctx, "users", map[string]any{"score": 0.0}, core.Filters{"name": "nobody"}, core.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), upd.RowsAffected)

	n, err := adp.Delete(ctx, "users", core.Filters{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = adp.Delete(ctx, "users", core.Filters{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestAdapter_TableExistsAndInfo(t *testing.T) {
	ctx := context.Background()
	adp := newTestAdapter(t)

	ok, err := adp.TableExists(ctx, "users")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = adp.TableExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := adp.TableInfo(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "score"}, info.Names())
	assert.Equal(t, []string{"id"}, info.PrimaryKeys())
	assert.True(t, info[1].NotNull)
	assert.Equal(t, "VARCHAR", info[1].Type)

	_, err = adp.TableInfo(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrTableNotFound)

	_, err = adp.TableInfo(ctx, "users'; --")
	assert.Equal(t, core.CodeInvalidIdentifier, core.ErrorCode(err))
}

func TestAdapter_ConstraintViolationRollsBack(t *testing.T) {
	ctx := context.Background()
	adp := newTestAdapter(t)

	_, err := adp.Insert(ctx, "users", []map[string]any{
		{"id": int64(1), "name": "a"},
		{"id": int64(1), "name": "b"},
	}, core.InsertOptions{})
	require.Error(t, err)
	assert.True(t, core.IsDatabase(err))
	assert.True(t, adp.IsConnected())

	rs, err := adp.Select(ctx, "users", core.SelectOptions{})
	require.NoError(t, err)
	assert.True(t, rs.Empty())

	_, err = adp.Insert(ctx, "users", []map[string]any{{"name": "c"}}, core.InsertOptions{})
	require.NoError(t, err)
}

func TestConnect_WithSettings(t *testing.T) {
	ctx := context.Background()
	adp := New(Config{
		DBPath:           ":memory:",
		PrimaryKeyColumn: "id",
		Settings:         map[string]string{"threads": "2"},
	}, nil)
	require.NoError(t, adp.Connect(ctx))
	defer func() { _ = adp.Disconnect() }()

	res, err := adp.Execute(ctx, "SELECT current_setting('threads') AS threads", nil, true)
	require.NoError(t, err)
	v, _ := res.Records.Value(0, "threads")
	assert.Equal(t, int64(2), v)
}

func TestSetupStatements(t *testing.T) {
	adp := New(Config{
		DBPath:     ":memory:",
		Extensions: []string{"json"},
		Settings:   map[string]string{"threads": "2", "memory_limit": "1GB"},
		Secrets:    []SecretConfig{{Type: "s3"}},
	}, nil)

	assert.Equal(t, []string{
		"INSTALL json",
		"LOAD json",
		"SET memory_limit = '1GB'",
		"SET threads = '2'",
		"CREATE SECRET (\n    TYPE s3\n)",
	}, adp.setupStatements())
}

func TestBuildCreateSecretSQL(t *testing.T) {
	tests := []struct {
		name string
		cfg  SecretConfig
		want string
	}{
		{
			name: "s3 with credential chain",
			cfg: SecretConfig{
				Type:     "s3",
				Provider: "credential_chain",
				Region:   "us-west-2",
			},
			want: `CREATE SECRET (
    TYPE s3,
    PROVIDER credential_chain,
    REGION 'us-west-2'
)`,
		},
		{
			name: "s3 type only",
			cfg: SecretConfig{
				Type: "s3",
			},
			want: `CREATE SECRET (
    TYPE s3
)`,
		},
		{
			name: "s3 with multiple scopes as []any",
			cfg: SecretConfig{
				Type:   "s3",
				Region: "eu-central-1",
				Scope:  []any{"s3://bucket1", "s3://bucket2"},
			},
			want: `CREATE SECRET (
    TYPE s3,
    REGION 'eu-central-1',
    SCOPE ('s3://bucket1', 's3://bucket2')
)`,
		},
		{
			name: "s3 compatible with endpoint and path style",
			cfg: SecretConfig{
				Type:     "s3",
				Provider: "config",
				KeyID:    "minioadmin",
				Secret:   "minio'admin",
				Endpoint: "localhost:9000",
				URLStyle: "path",
				UseSSL:   boolPtr(false),
			},
			want: `CREATE SECRET (
    TYPE s3,
    PROVIDER config,
    KEY_ID 'minioadmin',
    SECRET 'minio''admin',
    ENDPOINT 'localhost:9000',
    URL_STYLE 'path',
    USE_SSL false
)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildCreateSecretSQL(tt.cfg))
		})
	}
}

func TestOpen(t *testing.T) {
	conn, err := adapter.NewConnection("duckdb", map[string]any{"db_path": ":memory:"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Adapter{}, conn)
}

func boolPtr(b bool) *bool {
	return &b
}
