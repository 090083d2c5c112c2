package core

import "time"

// DType names a target type for post-fetch coercion of a column.
type DType string

// DType constants for column coercion.
const (
	DTypeInt    DType = "int"
	DTypeFloat  DType = "float"
	DTypeString DType = "string"
	DTypeBool   DType = "bool"
	DTypeTime   DType = "time"
)

// Valid reports whether d is a known DType.
func (d DType) Valid() bool {
	switch d {
	case DTypeInt, DTypeFloat, DTypeString, DTypeBool, DTypeTime:
		return true
	}
	return false
}

// Transform describes column-by-column steps applied to fetched rows.
// Steps run in order: DTypes, then ParseDates, then Location.
type Transform struct {
	// DTypes coerces the named columns to the given type.
	DTypes map[string]DType

	// ParseDates parses the named columns into time.Time using the given format.
	// Both strftime formats ("%Y-%m-%d %H:%M:%S") and Go layouts are accepted.
	ParseDates map[string]string

	// Location converts parsed timestamps into this zone.
	// Timestamps without zone information are treated as UTC.
	Location *time.Location
}

// IsZero reports whether the transform does nothing.
func (t Transform) IsZero() bool {
	return len(t.DTypes) == 0 && len(t.ParseDates) == 0 && t.Location == nil
}

// SelectOptions controls a Select call.
type SelectOptions struct {
	// Columns to fetch. Empty means all columns.
	Columns []string

	// Filters restricts rows. Nil matches every row.
	Filters Filters

	// OrderBy is a list of "column [ASC|DESC]" terms separated by commas.
	OrderBy string

	// Limit caps the number of rows. Zero means no limit; negative is invalid.
	Limit int

	Transform
}

// InsertOptions controls an Insert call.
type InsertOptions struct {
	// ReturnInserted returns the inserted rows as stored by the engine.
	ReturnInserted bool

	Transform
}

// UpdateOptions controls an Update call.
type UpdateOptions struct {
	// ReturnUpdated returns the rows as they are after the update.
	ReturnUpdated bool

	Transform
}

// Result is the outcome of Execute.
type Result struct {
	// RowsAffected is the engine-reported count for write statements.
	RowsAffected int64

	// LastInsertID is set by engines that report it; zero otherwise.
	LastInsertID int64

	// Records holds the rows produced by the statement, if it produced any.
	Records *RecordSet
}

// WriteResult is the outcome of Insert and Update.
type WriteResult struct {
	RowsAffected int64

	// Records is set only when the caller asked for the written rows.
	Records *RecordSet
}
