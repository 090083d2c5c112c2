package adapter

import (
	"fmt"
	"strings"
)

// PlaceholderStyle selects how bind parameters are written.
type PlaceholderStyle int

// Placeholder styles.
const (
	// PlaceholderQuestion writes ? for every parameter (SQLite, DuckDB, MySQL).
	PlaceholderQuestion PlaceholderStyle = iota

	// PlaceholderDollar writes $1, $2, ... (PostgreSQL).
	PlaceholderDollar
)

// Dialect holds the statement-building differences between backends.
type Dialect struct {
	// Name is the backend token (e.g. "sqlite", "postgres").
	Name string

	// Placeholders is the bind parameter style.
	Placeholders PlaceholderStyle

	// SupportsReturning reports whether INSERT/UPDATE ... RETURNING is available.
	SupportsReturning bool
}

// FormatPlaceholder returns the placeholder for the n-th (1-based) parameter.
func (d *Dialect) FormatPlaceholder(n int) string {
	if d.Placeholders == PlaceholderDollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// placeholders returns count placeholders starting at parameter start.
func (d *Dialect) placeholders(start, count int) string {
	ph := make([]string, count)
	for i := range ph {
		ph[i] = d.FormatPlaceholder(start + i)
	}
	return strings.Join(ph, ", ")
}

// Common dialects.
var (
	SQLiteDialect   = &Dialect{Name: "sqlite", Placeholders: PlaceholderQuestion, SupportsReturning: true}
	DuckDBDialect   = &Dialect{Name: "duckdb", Placeholders: PlaceholderQuestion, SupportsReturning: true}
	MySQLDialect    = &Dialect{Name: "mysql", Placeholders: PlaceholderQuestion}
	PostgresDialect = &Dialect{Name: "postgres", Placeholders: PlaceholderDollar, SupportsReturning: true}
)
