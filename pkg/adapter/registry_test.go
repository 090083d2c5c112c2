package adapter

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/leapstack-labs/leapconn/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Connection for registry and scope tests.
type fakeConn struct {
	args map[string]any

	connectErr    error
	disconnectErr error

	connected   bool
	pending     bool
	disconnects int
	rollbacks   int
}

func (f *fakeConn) Connect(context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeConn) Disconnect() error {
	f.disconnects++
	f.connected = false
	f.pending = false
	return f.disconnectErr
}

func (f *fakeConn) IsConnected() bool { return f.connected }
func (f *fakeConn) Backend() string   { return "fake" }

func (f *fakeConn) Execute(_ context.Context, _ string, _ []any, commit bool) (*core.Result, error) {
	f.pending = !commit
	return &core.Result{}, nil
}

func (f *fakeConn) Insert(context.Context, string, []map[string]any, core.InsertOptions) (*core.WriteResult, error) {
	return &core.WriteResult{}, nil
}

func (f *fakeConn) Select(context.Context, string, core.SelectOptions) (*core.RecordSet, error) {
	return core.NewRecordSet(), nil
}

func (f *fakeConn) Update(context.Context, string, map[string]any, core.Filters, core.UpdateOptions) (*core.WriteResult, error) {
	return &core.WriteResult{}, nil
}

func (f *fakeConn) Delete(context.Context, string, core.Filters) (int64, error) { return 0, nil }

func (f *fakeConn) TableExists(context.Context, string) (bool, error) { return false, nil }

func (f *fakeConn) TableInfo(context.Context, string) (core.ColumnInfos, error) { return nil, nil }

func (f *fakeConn) Commit() error {
	f.pending = false
	return nil
}

func (f *fakeConn) Rollback() error {
	f.rollbacks++
	f.pending = false
	return nil
}

func (f *fakeConn) InTransaction() bool { return f.pending }

func registerFake(t *testing.T, token string) {
	t.Helper()
	Register(token, func(args map[string]any, _ *slog.Logger) (Connection, error) {
		var cfg struct {
			Path string `mapstructure:"db_path"`
		}
		if err := DecodeArgs(args, &cfg); err != nil {
			return nil, err
		}
		return &fakeConn{args: args}, nil
	})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, token)
		registryMu.Unlock()
	})
}

func TestUnknownAdapterError_Error(t *testing.T) {
	err := &UnknownAdapterError{
		Type:      "fake_db",
		Available: []string{"duckdb", "postgres"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "fake_db", "error should mention the unknown type 'fake_db'")
	assert.Contains(t, msg, "duckdb", "error should list available backends")
}

func TestRegister(t *testing.T) {
	registerFake(t, "test_adapter_internal")

	assert.True(t, IsRegistered("test_adapter_internal"), "test_adapter_internal should be registered after Register()")
	assert.Contains(t, ListAdapters(), "test_adapter_internal")

	ctor, ok := Get("test_adapter_internal")
	assert.True(t, ok, "Get(test_adapter_internal) should return true after Register()")
	assert.NotNil(t, ctor, "Get(test_adapter_internal) should return non-nil constructor")
}

func TestNewConnection(t *testing.T) {
	registerFake(t, "custom")

	conn, err := NewConnection("custom", map[string]any{"db_path": "x.db"}, nil)
	require.NoError(t, err)
	fc, ok := conn.(*fakeConn)
	require.True(t, ok)
	assert.Equal(t, "x.db", fc.args["db_path"], "arguments are forwarded to the constructor")
	assert.False(t, conn.IsConnected(), "constructors return a disconnected connection")
}

func TestNewConnection_Errors(t *testing.T) {
	registerFake(t, "custom")

	tests := []struct {
		name     string
		token    string
		args     map[string]any
		wantCode string
	}{
		{"empty token", "", nil, core.CodeUnknownBackend},
		{"unknown token", "oracle", nil, core.CodeUnknownBackend},
		{"unknown argument", "custom", map[string]any{"nope": 1}, core.CodeInvalidArguments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConnection(tt.token, tt.args, nil)
			require.Error(t, err)
			assert.True(t, core.IsValidation(err))
			assert.Equal(t, tt.wantCode, core.ErrorCode(err))
		})
	}

	_, err := NewConnection("oracle", nil, nil)
	assert.Contains(t, err.Error(), "oracle")
	var unknown *UnknownAdapterError
	require.True(t, errors.As(err, &unknown))
	assert.Contains(t, unknown.Available, "custom")
}

func TestListAdapters_Sorted(t *testing.T) {
	registerFake(t, "zz_last")
	registerFake(t, "aa_first")

	names := ListAdapters()
	assert.IsNonDecreasing(t, names)
}
