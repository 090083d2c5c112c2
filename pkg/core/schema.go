package core

// ColumnInfo describes one column of a table.
// It is the uniform schema descriptor returned by every backend.
type ColumnInfo struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	NotNull    bool    `json:"notnull"`
	Default    *string `json:"dflt_value"`
	PrimaryKey bool    `json:"pk"`
	Position   int     `json:"position"`
}

// ColumnInfos is a table's columns in declaration order.
type ColumnInfos []ColumnInfo

// Names returns the column names in declaration order.
func (c ColumnInfos) Names() []string {
	names := make([]string, len(c))
	for i, col := range c {
		names[i] = col.Name
	}
	return names
}

// PrimaryKeys returns the names of primary key columns.
func (c ColumnInfos) PrimaryKeys() []string {
	var pks []string
	for _, col := range c {
		if col.PrimaryKey {
			pks = append(pks, col.Name)
		}
	}
	return pks
}

// SchemaColumns is the column layout of ColumnInfos.RecordSet.
var SchemaColumns = []string{"name", "type", "notnull", "dflt_value", "pk"}

// RecordSet renders the descriptor as name, type, notnull, dflt_value, pk rows.
func (c ColumnInfos) RecordSet() *RecordSet {
	rs := NewRecordSet(SchemaColumns...)
	for _, col := range c {
		var dflt any
		if col.Default != nil {
			dflt = *col.Default
		}
		rs.Append(col.Name, col.Type, col.NotNull, dflt, col.PrimaryKey)
	}
	return rs
}
