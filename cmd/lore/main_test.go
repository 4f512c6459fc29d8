package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/lore/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.PathEnv, "")
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"lore"}, args...))
	return out.String(), err
}

func TestSetupLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := runApp(t, "--log-level", "chatty", "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestConfigCommand(t *testing.T) {
	t.Setenv(config.AITokenEnv, "sk-secret")
	dir := t.TempDir()

	out, err := runApp(t, "--data-dir", dir, "config")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-secret")

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "***", cfg.AI.Token)
	assert.Equal(t, config.Default().Retrieval.TopK, cfg.Retrieval.TopK)
}

func TestConfigCommandReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9090\"\nretrieval:\n  topK: 7\n"), 0o600))

	out, err := runApp(t, "--config", path, "config")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
}

func TestConfigCommandMissingFile(t *testing.T) {
	_, err := runApp(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "config")
	require.Error(t, err)
}

func TestArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"ask without question", []string{"ask"}, "question is required"},
		{"ask blank question", []string{"ask", "  "}, "question is required"},
		{"ingest without urls", []string{"ingest"}, "at least one url"},
		{"title with batch", []string{"ingest", "--title", "x", "https://a.example", "https://b.example"}, "single url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", redact(""))
	assert.Equal(t, "none", redact("none"))
	assert.Equal(t, "***", redact("abc"))
}
