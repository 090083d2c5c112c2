package adapter

import (
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapconn/pkg/core"
)

// ScanRecords reads every remaining row into a RecordSet and closes rows.
// Values are normalized with NormalizeValue.
func ScanRecords(rows *sql.Rows) (*core.RecordSet, error) {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	rs := core.NewRecordSet(cols...)
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i := range values {
			values[i] = NormalizeValue(values[i])
		}
		rs.Rows = append(rs.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return rs, nil
}

// NormalizeValue maps a driver value onto the record scalar set:
// nil, int64, float64, string, bool, time.Time. Text arriving as bytes
// becomes a string; UUIDs become their canonical string form. Binary
// data that is not valid UTF-8 is kept as a copied []byte.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		b := make([]byte, len(x))
		copy(b, x)
		return b
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return normalizeUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return normalizeUint(x)
	case float32:
		return float64(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case string, bool, int64, float64, time.Time:
		return v
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case fmt.Stringer:
		// Engine-specific scalars (decimals, intervals) render as text.
		return x.String()
	default:
		return v
	}
}

func normalizeUint(x uint64) any {
	if x > math.MaxInt64 {
		return float64(x)
	}
	return int64(x)
}
