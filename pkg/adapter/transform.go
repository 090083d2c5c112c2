package adapter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapconn/pkg/core"
	"github.com/ncruces/go-strftime"
)

// timeLayouts are tried in order when coercing text to DTypeTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ApplyTransform runs t over rs in place, column by column:
// DTypes coercion, then ParseDates parsing, then Location conversion.
func ApplyTransform(rs *core.RecordSet, t core.Transform) error {
	if rs == nil || t.IsZero() {
		return nil
	}
	if err := validateTransform(rs, t); err != nil {
		return err
	}

	for col, dtype := range t.DTypes {
		if err := mapColumn(rs, col, func(v any) (any, error) { return coerce(v, dtype) }); err != nil {
			return err
		}
	}

	for col, format := range t.ParseDates {
		if err := mapColumn(rs, col, func(v any) (any, error) { return parseDate(v, format) }); err != nil {
			return err
		}
	}

	if t.Location != nil {
		for _, col := range timeColumns(t) {
			_ = mapColumn(rs, col, func(v any) (any, error) {
				if ts, ok := v.(time.Time); ok {
					return ts.In(t.Location), nil
				}
				return v, nil
			})
		}
	}
	return nil
}

func validateTransform(rs *core.RecordSet, t core.Transform) error {
	// An empty result may carry no column list (e.g. nothing to re-select).
	checkCols := len(rs.Columns) > 0

	for col, dtype := range t.DTypes {
		if !dtype.Valid() {
			return core.NewValidationError(core.CodeInvalidTransform, "unknown dtype %q for column %q", dtype, col)
		}
		if checkCols && rs.ColumnIndex(col) < 0 {
			return core.NewValidationError(core.CodeInvalidTransform, "dtype column %q is not in the result", col)
		}
	}
	for col, format := range t.ParseDates {
		if format == "" {
			return core.NewValidationError(core.CodeInvalidTransform, "empty date format for column %q", col)
		}
		if checkCols && rs.ColumnIndex(col) < 0 {
			return core.NewValidationError(core.CodeInvalidTransform, "parse_dates column %q is not in the result", col)
		}
	}
	return nil
}

// timeColumns returns the columns that Location applies to.
func timeColumns(t core.Transform) []string {
	cols := make([]string, 0, len(t.ParseDates))
	for col := range t.ParseDates {
		cols = append(cols, col)
	}
	for col, dtype := range t.DTypes {
		if dtype == core.DTypeTime {
			if _, dup := t.ParseDates[col]; !dup {
				cols = append(cols, col)
			}
		}
	}
	return cols
}

func mapColumn(rs *core.RecordSet, col string, fn func(any) (any, error)) error {
	idx := rs.ColumnIndex(col)
	if idx < 0 {
		return nil
	}
	for i, row := range rs.Rows {
		v, err := fn(row[idx])
		if err != nil {
			return core.NewDatabaseError(core.CodeTransform, "transform",
				fmt.Sprintf("column %q, row %d", col, i), err)
		}
		row[idx] = v
	}
	return nil
}

func coerce(v any, dtype core.DType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch dtype {
	case core.DTypeInt:
		return toInt(v)
	case core.DTypeFloat:
		return toFloat(v)
	case core.DTypeString:
		return toString(v), nil
	case core.DTypeBool:
		return toBool(v)
	case core.DTypeTime:
		return toTime(v)
	}
	return nil, fmt.Errorf("unknown dtype %q", dtype)
}

func toInt(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, fmt.Errorf("cannot convert %v to int without losing precision", x)
		}
		return int64(x), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to int", x)
		}
		return toInt(f)
	}
	return nil, fmt.Errorf("cannot convert %T to int", v)
}

func toFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to float", x)
		}
		return f, nil
	}
	return nil, fmt.Errorf("cannot convert %T to float", v)
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func toBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to bool", x)
		}
		return b, nil
	}
	return nil, fmt.Errorf("cannot convert %T to bool", v)
}

func toTime(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case int64:
		return time.Unix(x, 0).UTC(), nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return nil, fmt.Errorf("cannot convert %q to time", x)
	}
	return nil, fmt.Errorf("cannot convert %T to time", v)
}

// parseDate parses v using format. Engines that already return typed
// timestamps pass through unchanged.
func parseDate(v any, format string) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x, nil
	case []byte:
		return ParseTimestamp(format, string(x))
	case string:
		return ParseTimestamp(format, x)
	}
	return nil, fmt.Errorf("cannot parse %T as a date", v)
}

// ParseTimestamp parses value with format. Formats containing '%' are
// strftime directives; anything else is a Go reference layout.
func ParseTimestamp(format, value string) (time.Time, error) {
	if strings.Contains(format, "%") {
		return strftime.Parse(format, value)
	}
	return time.Parse(format, value)
}
