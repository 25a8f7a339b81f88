package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("source", "", "")
	fs.String("base-url", "", "")
	fs.String("state", "", "")
	fs.String("view", "", "")
	fs.Bool("verbose", false, "")
	fs.String("output", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fraudviz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Source.Type)
	assert.Equal(t, DefaultBaseURL, cfg.Source.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Source.Timeout)
	require.NotNil(t, cfg.Source.Breaker)
	assert.InDelta(t, 0.6, cfg.Source.Breaker.FailureRatio, 1e-9)
	assert.Equal(t, time.Minute, cfg.Source.Breaker.Interval)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, DefaultHistoryKeep, cfg.HistoryKeep)
	assert.Equal(t, "transactions", cfg.DefaultView)
	assert.Equal(t, DefaultPort, cfg.UI.Port)
	assert.True(t, cfg.UI.AutoOpen)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, `
source:
  base_url: http://from-file:8000
  timeout: 3s
default_view: fraud
output: json
`)

	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		wantURL string
		wantOut string
	}{
		{
			name:    "file over defaults",
			wantURL: "http://from-file:8000",
			wantOut: "json",
		},
		{
			name:    "env over file",
			env:     map[string]string{"FRAUDVIZ_SOURCE__BASE_URL": "http://from-env:8000"},
			wantURL: "http://from-env:8000",
			wantOut: "json",
		},
		{
			name:    "flag over env",
			env:     map[string]string{"FRAUDVIZ_SOURCE__BASE_URL": "http://from-env:8000", "FRAUDVIZ_OUTPUT": "text"},
			args:    []string{"--base-url", "http://from-flag:8000"},
			wantURL: "http://from-flag:8000",
			wantOut: "text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig(path, newFlags(t, tt.args...))
			require.NoError(t, err)

			assert.Equal(t, tt.wantURL, cfg.Source.BaseURL)
			assert.Equal(t, tt.wantOut, cfg.OutputFormat)
			assert.Equal(t, 3*time.Second, cfg.Source.Timeout)
			assert.Equal(t, "fraud", cfg.DefaultView)
			assert.Equal(t, path, GetConfigFileUsed())
		})
	}
}

func TestLoadConfig_FlagKeys(t *testing.T) {
	t.Chdir(t.TempDir())
	ResetConfig()
	t.Setenv("FRAUDVIZ_SOURCE__FILE__PATH", "graph.json")

	cfg, err := LoadConfig("", newFlags(t, "--source", "file", "--state", "/tmp/h.db", "--view", "fraud", "--verbose"))
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Source.Type)
	require.NotNil(t, cfg.Source.File)
	assert.Equal(t, "graph.json", cfg.Source.File.Path)
	assert.Equal(t, "/tmp/h.db", cfg.StatePath)
	assert.Equal(t, "fraud", cfg.DefaultView)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_ExpandsSecrets(t *testing.T) {
	ResetConfig()
	t.Setenv("NEO_PASS", "s3cret")
	t.Setenv("UI_SECRET", "cookie-key")
	path := writeConfig(t, `
source:
  type: neo4j
  neo4j:
    uri: bolt://localhost:7687
    user: neo4j
    password: ${NEO_PASS}
ui:
  session_secret: ${UI_SECRET}
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	require.NotNil(t, cfg.Source.Neo4j)
	assert.Equal(t, "s3cret", cfg.Source.Neo4j.Password)
	assert.Equal(t, "cookie-key", cfg.UI.SessionSecret)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		errSubstr string
	}{
		{"unknown source", "source:\n  type: kafka\n", "source.type must be one of"},
		{"bad view", "default_view: sideways\n", "default_view must be one of"},
		{"bad output", "output: html\n", "output must be one of"},
		{"neo4j without uri", "source:\n  type: neo4j\n", "source.neo4j.uri is required"},
		{"file without path", "source:\n  type: file\n", "source.file.path is required"},
		{"ratio out of range", "source:\n  breaker:\n    failure_ratio: 2\n", "source.breaker.failure_ratio is out of range"},
		{"negative keep", "history_keep: -1\n", "history_keep is out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			_, err := LoadConfig(writeConfig(t, tt.body), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
			assert.Nil(t, GetCurrentConfig())
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	ResetConfig()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FV_SET", "value")

	tests := []struct {
		in, want string
	}{
		{"${FV_SET}", "value"},
		{"pre-${FV_SET}-post", "pre-value-post"},
		{"${FV_UNSET_VARIABLE}", "${FV_UNSET_VARIABLE}"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnvVars(tt.in), tt.in)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", false)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	NewLogger(&buf, "error", true).Debug("verbose wins")
	assert.Contains(t, buf.String(), "verbose wins")

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
	assert.NotNil(t, GetLogger(context.Background()))
}
