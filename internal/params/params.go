// Package params parses literal values typed by users on the command line
// or in query strings into typed parameters, filters and transforms.
package params

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapconn/pkg/core"
)

// ParseValue converts a command-line literal into a parameter value.
// NULL becomes nil; true/false, integers and floats keep their type;
// a double-quoted literal is always a string.
func ParseValue(s string) any {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	switch strings.ToLower(s) {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// ParseAssignments parses col=value terms into a map.
func ParseAssignments(terms []string) (map[string]any, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(terms))
	for _, term := range terms {
		col, val, ok := strings.Cut(term, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid term %q: expected column=value", term)
		}
		out[col] = ParseValue(val)
	}
	return out, nil
}

// ParseFilters parses --where terms. No terms means no filter.
func ParseFilters(terms []string) (core.Filters, error) {
	m, err := ParseAssignments(terms)
	if err != nil || m == nil {
		return nil, err
	}
	return core.Filters(m), nil
}

// ParseTransform builds a transform from --parse-date, --dtype and --tz values.
func ParseTransform(parseDates, dtypes []string, tz string) (core.Transform, error) {
	var t core.Transform
	for _, term := range parseDates {
		col, format, ok := strings.Cut(term, "=")
		if !ok || col == "" {
			return t, fmt.Errorf("invalid --parse-date %q: expected column=format", term)
		}
		if t.ParseDates == nil {
			t.ParseDates = map[string]string{}
		}
		t.ParseDates[col] = format
	}
	for _, term := range dtypes {
		col, dtype, ok := strings.Cut(term, "=")
		if !ok || col == "" {
			return t, fmt.Errorf("invalid --dtype %q: expected column=type", term)
		}
		if t.DTypes == nil {
			t.DTypes = map[string]core.DType{}
		}
		t.DTypes[col] = core.DType(dtype)
	}
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return t, fmt.Errorf("invalid --tz %q: %w", tz, err)
		}
		t.Location = loc
	}
	return t, nil
}

// ParseRows decodes each --row value as a JSON object. Integral numbers
// become int64.
func ParseRows(values []string) ([]map[string]any, error) {
	rows := make([]map[string]any, 0, len(values))
	for i, v := range values {
		dec := json.NewDecoder(strings.NewReader(v))
		dec.UseNumber()
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("row %d is not a JSON object: %w", i+1, err)
		}
		normalizeRow(row)
		rows = append(rows, row)
	}
	return rows, nil
}

func jsonValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return f
}

// DecodeRows decodes a JSON array of objects, such as a request body.
// Integral numbers become int64.
func DecodeRows(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("body is not a JSON array of objects: %w", err)
	}
	for _, row := range rows {
		normalizeRow(row)
	}
	return rows, nil
}

// DecodeObject decodes a single JSON object. Integral numbers become int64.
func DecodeObject(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("body is not a JSON object: %w", err)
	}
	normalizeRow(obj)
	return obj, nil
}

func normalizeRow(row map[string]any) {
	for k, v := range row {
		row[k] = jsonValue(v)
	}
}
