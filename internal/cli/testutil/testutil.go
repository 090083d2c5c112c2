// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapconn/internal/cli/output"
	"github.com/leapstack-labs/leapconn/internal/config"
	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/leapconn/pkg/adapters/sqlite"
)

// TestProject is a temporary directory holding a leapconn.yaml and the
// sqlite databases its profiles point at.
type TestProject struct {
	Dir        string
	ConfigFile string
	DBPath     string
}

const seedSQL = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    age INTEGER,
    created_at TEXT
);
INSERT INTO users (name, age, created_at) VALUES
    ('ada', 36, '2024-01-15 10:30:00'),
    ('alan', 41, '2024-02-01 08:00:00'),
    ('grace', 85, '2024-03-09 23:59:59');
`

// SetupTestProject creates a project with two sqlite profiles: "local",
// seeded with a users table, and "empty".
func SetupTestProject(t *testing.T) *TestProject {
	t.Helper()

	dir := t.TempDir()
	p := &TestProject{
		Dir:        dir,
		ConfigFile: filepath.Join(dir, config.ConfigFileName),
		DBPath:     filepath.Join(dir, "app.db"),
	}

	cfg := "default: local\n" +
		"output: json\n" +
		"connections:\n" +
		"  local:\n" +
		"    type: sqlite\n" +
		"    db_path: " + p.DBPath + "\n" +
		"  empty:\n" +
		"    type: sqlite\n" +
		"    db_path: " + filepath.Join(dir, "empty.db") + "\n"
	require.NoError(t, os.WriteFile(p.ConfigFile, []byte(cfg), 0o600))

	ctx := context.Background()
	err := adapter.Use(ctx, "sqlite", map[string]any{"db_path": p.DBPath}, nil, func(conn adapter.Connection) error {
		for _, stmt := range strings.Split(seedSQL, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := conn.Execute(ctx, stmt, nil, true); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return p
}

// Config loads the project's configuration.
func (p *TestProject) Config(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(p.ConfigFile, nil)
	require.NoError(t, err)
	return cfg
}

// TestRenderer wraps a Renderer with captured output.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a renderer writing to buffers.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns captured stdout.
func (tr *TestRenderer) Output() string { return tr.Out.String() }

// ErrorOutput returns captured stderr.
func (tr *TestRenderer) ErrorOutput() string { return tr.ErrOut.String() }

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// AssertNoANSI fails if s contains ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("output contains ANSI escape codes:\n%s", s)
	}
}
