package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithConnection(t *testing.T) {
	ctx := context.Background()
	bodyErr := errors.New("body failed")
	closeErr := errors.New("close failed")

	tests := []struct {
		name          string
		conn          *fakeConn
		body          func(Connection) error
		wantErr       error
		wantRollbacks int
		wantRan       bool
	}{
		{
			name:    "success disconnects",
			conn:    &fakeConn{},
			body:    func(Connection) error { return nil },
			wantRan: true,
		},
		{
			name: "failure rolls back pending work and disconnects",
			conn: &fakeConn{},
			body: func(c Connection) error {
				_, _ = c.Execute(ctx, "INSERT", nil, false)
				return bodyErr
			},
			wantErr:       bodyErr,
			wantRollbacks: 1,
			wantRan:       true,
		},
		{
			name:    "disconnect error surfaces after success",
			conn:    &fakeConn{disconnectErr: closeErr},
			body:    func(Connection) error { return nil },
			wantErr: closeErr,
			wantRan: true,
		},
		{
			name:    "disconnect error never masks body error",
			conn:    &fakeConn{disconnectErr: closeErr},
			body:    func(Connection) error { return bodyErr },
			wantErr: bodyErr,
			wantRan: true,
		},
		{
			name:    "connect failure skips body",
			conn:    &fakeConn{connectErr: closeErr},
			body:    func(Connection) error { return nil },
			wantErr: closeErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			err := WithConnection(ctx, tt.conn, func(c Connection) error {
				ran = true
				assert.True(t, c.IsConnected())
				return tt.body(c)
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantRan, ran)
			assert.Equal(t, tt.wantRollbacks, tt.conn.rollbacks)
			assert.False(t, tt.conn.IsConnected())
			if tt.wantRan {
				assert.Equal(t, 1, tt.conn.disconnects)
			}
		})
	}
}

func TestWithConnection_Panic(t *testing.T) {
	conn := &fakeConn{}
	assert.Panics(t, func() {
		_ = WithConnection(context.Background(), conn, func(Connection) error {
			panic("boom")
		})
	})
	assert.Equal(t, 1, conn.disconnects, "disconnect runs even when the body panics")
}

func TestUse(t *testing.T) {
	registerFake(t, "scoped")

	var seen Connection
	err := Use(context.Background(), "scoped", map[string]any{"db_path": "x"}, nil, func(c Connection) error {
		seen = c
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.False(t, seen.IsConnected())

	err = Use(context.Background(), "missing", nil, nil, func(Connection) error {
		t.Fatal("body must not run for an unknown backend")
		return nil
	})
	assert.Error(t, err)
}
