// Package core defines the shared language of leapconn.
//
// This package contains:
//   - Tabular data (Record, RecordSet) and filter specifications
//   - Schema descriptors (ColumnInfo)
//   - Operation options and results (SelectOptions, InsertOptions, WriteResult, ...)
//   - Post-fetch transforms (Transform, DType)
//   - The typed error taxonomy (ValidationError, ResourceError, DatabaseError)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
