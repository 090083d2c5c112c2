// Package output renders record sets for the CLI in the selected format.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapconn/pkg/core"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Mode is an output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeTable    Mode = "table"
	ModeJSON     Mode = "json"
	ModeCSV      Mode = "csv"
	ModeMarkdown Mode = "markdown"
	ModeYAML     Mode = "yaml"
)

// Renderer writes results to out and status messages to errOut.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
}

// NewRenderer creates a renderer. Auto mode resolves to a table when out
// is a terminal and to JSON otherwise.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
	}
	return NewRendererWithTTY(out, errOut, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	return &Renderer{out: out, errOut: errOut, mode: mode, isTTY: isTTY}
}

// Mode returns the effective output mode.
func (r *Renderer) Mode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeTable
	}
	return ModeJSON
}

// Out returns the result writer.
func (r *Renderer) Out() io.Writer { return r.out }

// Records renders rs in the effective mode.
func (r *Renderer) Records(rs *core.RecordSet) error {
	if rs == nil {
		rs = core.NewRecordSet()
	}
	switch r.Mode() {
	case ModeJSON:
		return writeJSON(r.out, rs)
	case ModeYAML:
		return writeYAML(r.out, rs)
	case ModeCSV:
		return writeCSV(r.out, rs)
	case ModeMarkdown:
		newTable(r.out, rs).RenderMarkdown()
		_, _ = fmt.Fprintln(r.out)
		return nil
	case ModeTable:
		if len(rs.Columns) == 0 {
			_, _ = fmt.Fprintln(r.out, "(0 rows)")
			return nil
		}
		newTable(r.out, rs).Render()
		_, _ = fmt.Fprintf(r.out, "(%d rows)\n", rs.Len())
		return nil
	default:
		return fmt.Errorf("unknown output format %q", r.mode)
	}
}

// Fields renders one row of named values, such as an operation summary.
func (r *Renderer) Fields(names []string, values ...any) error {
	rs := core.NewRecordSet(names...)
	rs.Append(values...)
	return r.Records(rs)
}

// Success writes a status line to the error stream.
func (r *Renderer) Success(format string, args ...any) {
	_, _ = fmt.Fprintf(r.errOut, format+"\n", args...)
}

// Warning writes a warning line to the error stream.
func (r *Renderer) Warning(format string, args ...any) {
	_, _ = fmt.Fprintf(r.errOut, "Warning: "+format+"\n", args...)
}

func newTable(w io.Writer, rs *core.RecordSet) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(rs.Columns))
	for i, col := range rs.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range rs.Rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = FormatValue(v)
		}
		t.AppendRow(tr)
	}
	return t
}

// FormatValue renders a record value for text output.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []byte:
		return fmt.Sprintf("\\x%x", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// writeCSV writes RFC 4180 CSV with a header row.
func writeCSV(w io.Writer, rs *core.RecordSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.Columns); err != nil {
		return err
	}
	for _, row := range rs.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			if v != nil {
				rec[i] = FormatValue(v)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeJSON writes rows as an array of objects with keys in column order.
func writeJSON(w io.Writer, rs *core.RecordSet) error {
	var sb strings.Builder
	sb.WriteString("[")
	for i, row := range rs.Rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("\n  {")
		for j, col := range rs.Columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			key, _ := json.Marshal(col)
			val, err := json.Marshal(row[j])
			if err != nil {
				return fmt.Errorf("failed to encode column %s: %w", col, err)
			}
			sb.Write(key)
			sb.WriteString(": ")
			sb.Write(val)
		}
		sb.WriteString("}")
	}
	if rs.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("]\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// writeYAML writes rows as a sequence of mappings in column order.
func writeYAML(w io.Writer, rs *core.RecordSet) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range rs.Rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for j, col := range rs.Columns {
			var val yaml.Node
			if err := val.Encode(row[j]); err != nil {
				return fmt.Errorf("failed to encode column %s: %w", col, err)
			}
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: col}, &val)
		}
		doc.Content = append(doc.Content, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
