package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Format(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation",
			err:  NewValidationError(CodeInvalidIdentifier, "invalid SQL identifier %q", "a b"),
			want: `[INVALID_IDENTIFIER] invalid SQL identifier "a b"`,
		},
		{
			name: "resource with cause",
			err:  NewResourceError(CodeConnection, "failed to open sqlite database", cause),
			want: "[CONNECTION_ERROR] failed to open sqlite database: boom",
		},
		{
			name: "database with op",
			err:  NewDatabaseError(CodeInsert, "insert", `error inserting into "users"`, cause),
			want: `[INSERT_ERROR] insert: error inserting into "users": boom`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrors_Classification(t *testing.T) {
	v := NewValidationError(CodeEmptyRows, "rows cannot be empty")
	r := NewResourceError(CodeNotConnected, "not connected", ErrNotConnected)
	d := NewDatabaseError(CodeTableNotFound, "table_info", "missing", ErrTableNotFound)

	wrapped := fmt.Errorf("outer: %w", d)

	assert.True(t, IsValidation(v))
	assert.False(t, IsValidation(r))
	assert.True(t, IsResource(r))
	assert.True(t, IsDatabase(wrapped))
	assert.False(t, IsDatabase(v))

	assert.ErrorIs(t, r, ErrNotConnected)
	assert.ErrorIs(t, wrapped, ErrTableNotFound)

	assert.Equal(t, CodeEmptyRows, ErrorCode(v))
	assert.Equal(t, CodeTableNotFound, ErrorCode(wrapped))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
}
