package core

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by the typed errors below.
var (
	// ErrNotConnected is returned when an operation runs on a closed connection.
	ErrNotConnected = errors.New("database connection not established")

	// ErrTableNotFound is returned when a table does not exist.
	ErrTableNotFound = errors.New("table not found")
)

// Validation error codes.
const (
	CodeInvalidIdentifier = "INVALID_IDENTIFIER"
	CodeEmptyRows         = "EMPTY_ROWS"
	CodeColumnMismatch    = "COLUMN_MISMATCH"
	CodeEmptyParameters   = "EMPTY_PARAMETERS"
	CodeUnknownBackend    = "UNKNOWN_BACKEND"
	CodeInvalidArguments  = "INVALID_ARGUMENTS"
	CodeInvalidLimit      = "INVALID_LIMIT"
	CodeInvalidOrderBy    = "INVALID_ORDER_BY"
	CodeNoPrimaryKey      = "NO_PRIMARY_KEY"
	CodeInvalidTransform  = "INVALID_TRANSFORM"
	CodeInvalidFilter     = "INVALID_FILTER"
)

// Resource error codes.
const (
	CodeConnection   = "CONNECTION_ERROR"
	CodeDisconnect   = "DISCONNECT_ERROR"
	CodeNotConnected = "NOT_CONNECTED"
)

// Database error codes.
const (
	CodeExecute       = "EXECUTE_SQL_ERROR"
	CodeInsert        = "INSERT_ERROR"
	CodeSelect        = "SELECT_ERROR"
	CodeUpdate        = "UPDATE_ERROR"
	CodeDelete        = "DELETE_ERROR"
	CodeTableExists   = "TABLE_EXISTS_ERROR"
	CodeTableInfo     = "TABLE_INFO_ERROR"
	CodeTableNotFound = "TABLE_NOT_FOUND"
	CodeCommit        = "COMMIT_ERROR"
	CodeRollback      = "ROLLBACK_ERROR"
	CodeTransform     = "TRANSFORM_ERROR"
	CodeMigrate       = "MIGRATE_ERROR"
)

// ValidationError reports input rejected before any engine call.
type ValidationError struct {
	Code    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return formatError(e.Code, e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error { return e.Err }

// ResourceError reports a failure to acquire or release a connection.
type ResourceError struct {
	Code    string
	Message string
	Err     error
}

func (e *ResourceError) Error() string {
	return formatError(e.Code, e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *ResourceError) Unwrap() error { return e.Err }

// DatabaseError reports a failure raised by the engine during an operation.
type DatabaseError struct {
	Code    string
	Op      string
	Message string
	Err     error
}

func (e *DatabaseError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	return formatError(e.Code, msg, e.Err)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error { return e.Err }

func formatError(code, msg string, err error) string {
	s := msg
	if code != "" {
		s = fmt.Sprintf("[%s] %s", code, msg)
	}
	if err != nil {
		s += ": " + err.Error()
	}
	return s
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewResourceError creates a ResourceError wrapping err.
func NewResourceError(code, message string, err error) *ResourceError {
	return &ResourceError{Code: code, Message: message, Err: err}
}

// NewDatabaseError creates a DatabaseError wrapping err.
func NewDatabaseError(code, op, message string, err error) *DatabaseError {
	return &DatabaseError{Code: code, Op: op, Message: message, Err: err}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsResource reports whether err is or wraps a ResourceError.
func IsResource(err error) bool {
	var target *ResourceError
	return errors.As(err, &target)
}

// IsDatabase reports whether err is or wraps a DatabaseError.
func IsDatabase(err error) bool {
	var target *DatabaseError
	return errors.As(err, &target)
}

// ErrorCode returns the code of the outermost typed error in err's chain.
func ErrorCode(err error) string {
	for err != nil {
		switch e := err.(type) {
		case *ValidationError:
			return e.Code
		case *ResourceError:
			return e.Code
		case *DatabaseError:
			return e.Code
		}
		err = errors.Unwrap(err)
	}
	return ""
}
