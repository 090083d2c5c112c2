package adapter

import (
	"fmt"

	"github.com/leapstack-labs/leapconn/pkg/core"
)

// ColumnInfosFromPragma converts the output of PRAGMA table_info
// (cid, name, type, notnull, dflt_value, pk) into ColumnInfos.
// SQLite reports notnull and pk as integers, DuckDB as booleans.
func ColumnInfosFromPragma(rs *core.RecordSet) (core.ColumnInfos, error) {
	for _, col := range []string{"name", "type", "notnull", "dflt_value", "pk"} {
		if rs.ColumnIndex(col) < 0 {
			return nil, fmt.Errorf("table_info result has no %q column", col)
		}
	}

	infos := make(core.ColumnInfos, 0, rs.Len())
	for i, rec := range rs.Records() {
		name, _ := rec.Get("name")
		typ, _ := rec.Get("type")
		notNull, _ := rec.Get("notnull")
		dflt, _ := rec.Get("dflt_value")
		pk, _ := rec.Get("pk")

		info := core.ColumnInfo{
			Name:       toString(name),
			Type:       toString(typ),
			NotNull:    truthy(notNull),
			PrimaryKey: truthy(pk),
			Position:   i + 1,
		}
		if dflt != nil {
			s := toString(dflt)
			info.Default = &s
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// TableNotFound returns the error TableInfo reports for a missing table.
func TableNotFound(table string) error {
	return core.NewDatabaseError(core.CodeTableNotFound, "table_info",
		fmt.Sprintf("table %q does not exist", table), core.ErrTableNotFound)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != "" && x != "0" && x != "NO" && x != "false"
	}
	return false
}
