package core

import "sort"

// Record is a single row of a RecordSet.
// Values are in the same order as Columns.
type Record struct {
	Columns []string
	Values  []any
}

// Get returns the value of the named column.
func (r Record) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the record as a column-to-value map.
// Column order is lost; use Columns/Values when order matters.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

// RecordSet is an ordered sequence of rows sharing one column set.
// Every row holds exactly len(Columns) values.
type RecordSet struct {
	Columns []string
	Rows    [][]any
}

// NewRecordSet creates an empty record set with the given columns.
func NewRecordSet(columns ...string) *RecordSet {
	return &RecordSet{Columns: columns}
}

// Len returns the number of rows.
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// Empty reports whether the set has no rows.
func (rs *RecordSet) Empty() bool {
	return rs.Len() == 0
}

// ColumnIndex returns the position of column, or -1.
func (rs *RecordSet) ColumnIndex(column string) int {
	for i, c := range rs.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Record returns row i as a Record.
func (rs *RecordSet) Record(i int) Record {
	return Record{Columns: rs.Columns, Values: rs.Rows[i]}
}

// Records returns all rows as Records.
func (rs *RecordSet) Records() []Record {
	out := make([]Record, rs.Len())
	for i := range out {
		out[i] = rs.Record(i)
	}
	return out
}

// Value returns the value at row i for the named column.
func (rs *RecordSet) Value(i int, column string) (any, bool) {
	idx := rs.ColumnIndex(column)
	if idx < 0 || i < 0 || i >= rs.Len() {
		return nil, false
	}
	return rs.Rows[i][idx], true
}

// Column returns every value of the named column, in row order.
func (rs *RecordSet) Column(column string) []any {
	idx := rs.ColumnIndex(column)
	if idx < 0 {
		return nil
	}
	out := make([]any, len(rs.Rows))
	for i, row := range rs.Rows {
		out[i] = row[idx]
	}
	return out
}

// Maps returns all rows as column-to-value maps.
func (rs *RecordSet) Maps() []map[string]any {
	out := make([]map[string]any, rs.Len())
	for i := range out {
		out[i] = rs.Record(i).Map()
	}
	return out
}

// Append adds a row. It panics if the row width does not match Columns,
// since that would break the shared-column invariant.
func (rs *RecordSet) Append(values ...any) {
	if len(values) != len(rs.Columns) {
		panic("core: row width does not match record set columns")
	}
	rs.Rows = append(rs.Rows, values)
}

// Filters maps column names to values for WHERE clauses.
// A nil value means IS NULL; any other value is an equality test.
type Filters map[string]any

// Columns returns the filter columns in sorted order.
func (f Filters) Columns() []string {
	cols := make([]string, 0, len(f))
	for c := range f {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
