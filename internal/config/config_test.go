package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `default: local
output: json
connections:
  local:
    type: sqlite
    db_path: ./app.db
  pg:
    type: Postgres
    host: localhost
    port: 5432
    user: app
    password: ${LEAPCONN_TEST_SECRET}
    database: app
    params:
      application_name: ${LEAPCONN_TEST_APP}
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("connection", "c", "", "")
	fs.StringP("output", "o", "", "")
	fs.BoolP("verbose", "v", false, "")
	fs.String("unrelated", "", "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, cfg.File)
	assert.Empty(t, cfg.Connections)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "local", cfg.Default)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, []string{"local", "pg"}, cfg.ProfileNames())
}

func TestLoad_FindsFileUpward(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root, sampleConfig)
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(cfg.File)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_Precedence(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		flags      []string
		wantOutput string
		wantDef    string
		wantPort   any
	}{
		{
			name:       "file only",
			wantOutput: "json",
			wantDef:    "local",
			wantPort:   5432,
		},
		{
			name:       "env overrides file",
			env:        map[string]string{"LEAPCONN_OUTPUT": "csv", "LEAPCONN_CONNECTIONS__PG__PORT": "6543"},
			wantOutput: "csv",
			wantDef:    "local",
			wantPort:   "6543",
		},
		{
			name:       "flags override env",
			env:        map[string]string{"LEAPCONN_OUTPUT": "csv", "LEAPCONN_DEFAULT": "local"},
			flags:      []string{"-o", "yaml", "-c", "pg", "--unrelated", "x"},
			wantOutput: "yaml",
			wantDef:    "pg",
			wantPort:   5432,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), sampleConfig)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			fs := testFlags()
			require.NoError(t, fs.Parse(tt.flags))

			cfg, err := Load(path, fs)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutput, cfg.Output)
			assert.Equal(t, tt.wantDef, cfg.Default)
			assert.EqualValues(t, tt.wantPort, cfg.Connections["pg"]["port"])
		})
	}
}

func TestLoad_InvalidOutput(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "output: xml\n")
	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestConfig_Profile(t *testing.T) {
	t.Setenv("LEAPCONN_TEST_SECRET", "s3cret")

	path := writeConfig(t, t.TempDir(), sampleConfig)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		profile   string
		wantToken string
		wantArgs  map[string]any
		wantErr   string
	}{
		{
			name:      "default profile",
			wantToken: "sqlite",
			wantArgs:  map[string]any{"db_path": "./app.db"},
		},
		{
			name:      "named profile with expansion",
			profile:   "pg",
			wantToken: "postgres",
			wantArgs: map[string]any{
				"host": "localhost", "port": 5432, "user": "app", "password": "s3cret", "database": "app",
				"params": map[string]any{"application_name": "${LEAPCONN_TEST_APP}"},
			},
		},
		{
			name:    "unknown profile",
			profile: "nope",
			wantErr: `unknown connection "nope"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, args, err := cfg.Profile(tt.profile)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
			assert.EqualValues(t, tt.wantArgs, args)
		})
	}
}

func TestConfig_ProfileSelection(t *testing.T) {
	single := &Config{Connections: map[string]Profile{"only": {"type": "sqlite", "db_path": ":memory:"}}}
	token, args, err := single.Profile("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", token)
	assert.Equal(t, map[string]any{"db_path": ":memory:"}, args)

	many := &Config{Connections: map[string]Profile{
		"a": {"type": "sqlite"},
		"b": {"type": "duckdb"},
	}}
	_, _, err = many.Profile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a, b")

	untyped := &Config{Connections: map[string]Profile{"x": {"db_path": "a.db"}}}
	_, _, err = untyped.Profile("x")
	assert.ErrorContains(t, err, "has no type")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty ok", cfg: Config{Output: "auto"}},
		{name: "bad output", cfg: Config{Output: "html"}, wantErr: "invalid output format"},
		{
			name:    "missing type",
			cfg:     Config{Output: "table", Connections: map[string]Profile{"x": {}}},
			wantErr: `connection "x" has no type`,
		},
		{
			name: "undefined default",
			cfg: Config{Output: "table", Default: "y",
				Connections: map[string]Profile{"x": {"type": "sqlite"}}},
			wantErr: `default connection "y"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LEAPCONN_TEST_HOST", "db.local")
	t.Setenv("LEAPCONN_TEST_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{"${LEAPCONN_TEST_HOST}", "db.local"},
		{"tcp://${LEAPCONN_TEST_HOST}:5432", "tcp://db.local:5432"},
		{"${LEAPCONN_TEST_EMPTY}", ""},
		{"${LEAPCONN_TEST_UNSET_VAR}", "${LEAPCONN_TEST_UNSET_VAR}"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnvVars(tt.in), tt.in)
	}
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	l := GetLogger(WithLogger(context.Background(), nil))
	assert.NotNil(t, l)
}

func TestFromContext(t *testing.T) {
	cfg := FromContext(context.Background())
	assert.Equal(t, DefaultOutput, cfg.Output)

	want := &Config{Output: "csv"}
	assert.Same(t, want, FromContext(WithConfig(context.Background(), want)))
}
