package adapter

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/leapconn/pkg/core"
)

// Statement is SQL text with its bound parameters.
type Statement struct {
	SQL  string
	Args []any
}

// InsertColumns validates a batch of rows and returns its column set in
// sorted order. Rows must be non-empty and share one column set.
func InsertColumns(rows []map[string]any) ([]string, error) {
	if len(rows) == 0 {
		return nil, core.NewValidationError(core.CodeEmptyRows, "rows cannot be empty")
	}

	cols := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, core.NewValidationError(core.CodeEmptyRows, "rows must have at least one column")
	}
	sort.Strings(cols)

	if err := ValidateIdentifiers(cols...); err != nil {
		return nil, err
	}

	for i, row := range rows[1:] {
		if len(row) != len(cols) {
			return nil, core.NewValidationError(core.CodeColumnMismatch,
				"all rows must have the same columns: row %d has %d columns, expected %d", i+1, len(row), len(cols))
		}
		for _, col := range cols {
			if _, ok := row[col]; !ok {
				return nil, core.NewValidationError(core.CodeColumnMismatch,
					"all rows must have the same columns: row %d is missing %q", i+1, col)
			}
		}
	}
	return cols, nil
}

// RowValues returns row's values in column order.
func RowValues(row map[string]any, cols []string) []any {
	values := make([]any, len(cols))
	for i, col := range cols {
		values[i] = row[col]
	}
	return values
}

// BuildInsert builds one multi-row INSERT for the batch.
// When returning is set, the statement ends in RETURNING *.
func BuildInsert(d *Dialect, table string, rows []map[string]any, returning bool) (Statement, []string, error) {
	if _, err := ValidateIdentifier(table); err != nil {
		return Statement{}, nil, err
	}
	cols, err := InsertColumns(rows)
	if err != nil {
		return Statement{}, nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))

	args := make([]any, 0, len(rows)*len(cols))
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		sb.WriteString(d.placeholders(len(args)+1, len(cols)))
		sb.WriteString(")")
		args = append(args, RowValues(row, cols)...)
	}
	if returning {
		sb.WriteString(" RETURNING *")
	}
	return Statement{SQL: sb.String(), Args: args}, cols, nil
}

// BuildInsertRow builds a single-row INSERT for use as a prepared statement.
// Identifiers must already be validated.
func BuildInsertRow(d *Dialect, table string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), d.placeholders(1, len(cols)))
}

// ValidateFilterValue rejects filter values that cannot be compared with
// a single equality: anything but nil, booleans, numbers, strings, []byte,
// time.Time and driver.Valuer.
func ValidateFilterValue(col string, v any) error {
	switch v.(type) {
	case nil, []byte, time.Time, driver.Valuer:
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return ValidateFilterValue(col, rv.Elem().Interface())
	}
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	}
	return core.NewValidationError(core.CodeInvalidFilter,
		"filter on %q must be a scalar value, got %T", col, v)
}

// BuildWhere renders filters as a WHERE clause with placeholders numbered
// from start. Nil values become IS NULL. Empty filters yield no clause.
func BuildWhere(d *Dialect, filters core.Filters, start int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	cols := filters.Columns()
	if err := ValidateIdentifiers(cols...); err != nil {
		return "", nil, err
	}
	for _, col := range cols {
		if err := ValidateFilterValue(col, filters[col]); err != nil {
			return "", nil, err
		}
	}

	conds := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		v := filters[col]
		if v == nil {
			conds = append(conds, col+" IS NULL")
			continue
		}
		conds = append(conds, fmt.Sprintf("%s = %s", col, d.FormatPlaceholder(start+len(args))))
		args = append(args, v)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// BuildSelect builds a SELECT from opts. Transform settings are ignored here.
func BuildSelect(d *Dialect, table string, opts core.SelectOptions) (Statement, error) {
	if _, err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	if err := ValidateIdentifiers(opts.Columns...); err != nil {
		return Statement{}, err
	}
	if opts.Limit < 0 {
		return Statement{}, core.NewValidationError(core.CodeInvalidLimit, "limit must be a non-negative integer, got %d", opts.Limit)
	}
	orderBy, err := ParseOrderBy(opts.OrderBy)
	if err != nil {
		return Statement{}, err
	}

	cols := "*"
	if len(opts.Columns) > 0 {
		cols = strings.Join(opts.Columns, ", ")
	}

	where, args, err := BuildWhere(d, opts.Filters, 1)
	if err != nil {
		return Statement{}, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s", cols, table, where)
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return Statement{SQL: query, Args: args}, nil
}

// BuildUpdate builds an UPDATE setting params on rows matching filters.
// Nil filters match every row. Nil parameter values set the column to NULL.
func BuildUpdate(d *Dialect, table string, params map[string]any, filters core.Filters, returning bool) (Statement, error) {
	if _, err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	if len(params) == 0 {
		return Statement{}, core.NewValidationError(core.CodeEmptyParameters, "update parameters cannot be empty")
	}

	cols := core.Filters(params).Columns()
	if err := ValidateIdentifiers(cols...); err != nil {
		return Statement{}, err
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(filters))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = %s", col, d.FormatPlaceholder(i+1))
		args = append(args, params[col])
	}

	where, whereArgs, err := BuildWhere(d, filters, len(args)+1)
	if err != nil {
		return Statement{}, err
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(sets, ", "), where)
	if returning {
		query += " RETURNING *"
	}
	return Statement{SQL: query, Args: args}, nil
}

// BuildDelete builds a DELETE for rows matching filters.
// Nil filters match every row.
func BuildDelete(d *Dialect, table string, filters core.Filters) (Statement, error) {
	if _, err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	where, args, err := BuildWhere(d, filters, 1)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: fmt.Sprintf("DELETE FROM %s%s", table, where), Args: args}, nil
}

// BuildSelectByKeys builds a SELECT * for the rows whose key column is in
// keys, ordered by that column. Identifiers must already be validated.
func BuildSelectByKeys(d *Dialect, table, key string, keys []any) Statement {
	return Statement{
		SQL:  fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s) ORDER BY %s", table, key, d.placeholders(1, len(keys)), key),
		Args: keys,
	}
}
