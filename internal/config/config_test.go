package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the allowed config dir.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GITHUB_TOKEN", "")
	dir := filepath.Join(home, ".config", "repoindexer")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://api.github.com/", cfg.Hosting.BaseURL)
	assert.Equal(t, 100, cfg.Hosting.PerPage)
	assert.Equal(t, 30*time.Second, cfg.Hosting.Timeout)
	assert.Equal(t, 2, cfg.Hosting.MaxRetries)
	assert.Equal(t, []string{"main", "master"}, cfg.Hosting.Branches)
	assert.Equal(t, DefaultExtensions, cfg.Selection.Extensions)
	assert.Equal(t, float64(5120), cfg.Selection.MaxSizeKB)
	assert.Equal(t, cfg.Selection.MaxSizeKB, cfg.Fetch.MaxContentKB)
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, 512, cfg.Embeddings.MaxTokens)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "basic", cfg.VectorStore.Metadata)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
	assert.Equal(t, "repoindexer", cfg.Telemetry.ServiceName)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "per page too large", mutate: func(c *Config) { c.Hosting.PerPage = 101 }, wantErr: "per_page"},
		{name: "zero timeout", mutate: func(c *Config) { c.Hosting.Timeout = 0 }, wantErr: "timeout"},
		{name: "no branches", mutate: func(c *Config) { c.Hosting.Branches = nil }, wantErr: "branch"},
		{name: "negative size ceiling", mutate: func(c *Config) { c.Selection.MaxSizeKB = -1 }, wantErr: "max_size_kb"},
		{name: "extension without dot", mutate: func(c *Config) { c.Selection.Extensions = []string{"py"} }, wantErr: "extension"},
		{name: "bad exclude pattern", mutate: func(c *Config) { c.Selection.Exclude = []string{"vendor/["} }, wantErr: "exclude pattern"},
		{name: "unknown embeddings provider", mutate: func(c *Config) { c.Embeddings.Provider = "openai" }, wantErr: "embeddings provider"},
		{name: "unknown store", mutate: func(c *Config) { c.VectorStore.Provider = "pinecone" }, wantErr: "vectorstore provider"},
		{name: "unknown metadata level", mutate: func(c *Config) { c.VectorStore.Metadata = "full" }, wantErr: "metadata"},
		{name: "qdrant bad port", mutate: func(c *Config) {
			c.VectorStore.Provider = "qdrant"
			c.Qdrant.Port = 70000
		}, wantErr: "qdrant port"},
		{name: "zero workers", mutate: func(c *Config) { c.Pipeline.Workers = 0 }, wantErr: "workers"},
		{name: "telemetry disabled ignores protocol", mutate: func(c *Config) { c.Telemetry.Protocol = "udp" }},
		{name: "telemetry bad protocol", mutate: func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Protocol = "udp"
		}, wantErr: "telemetry protocol"},
		{name: "telemetry bad sample rate", mutate: func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.SampleRate = 1.5
		}, wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWithFile_YAMLAndEnv(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")

	yamlContent := `hosting:
  token: ghp_from_file
  branches: [trunk, main]
  timeout: 5s
selection:
  extensions: [.go, .py]
  max_size_kb: 1024
pipeline:
  workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0600))
	t.Setenv("REPOINDEXER_PIPELINE_WORKERS", "8")
	t.Setenv("REPOINDEXER_VECTORSTORE_METADATA", "rich")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "ghp_from_file", cfg.Hosting.Token.Value())
	assert.Equal(t, []string{"trunk", "main"}, cfg.Hosting.Branches)
	assert.Equal(t, 5*time.Second, cfg.Hosting.Timeout)
	assert.Equal(t, []string{".go", ".py"}, cfg.Selection.Extensions)
	assert.Equal(t, float64(1024), cfg.Selection.MaxSizeKB)
	assert.Equal(t, float64(1024), cfg.Fetch.MaxContentKB)
	assert.Equal(t, 8, cfg.Pipeline.Workers, "env overrides file")
	assert.Equal(t, "rich", cfg.VectorStore.Metadata)
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	dir := setupTestHome(t)
	t.Setenv("GITHUB_TOKEN", "ghp_env")

	cfg, err := LoadWithFile(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 2, cfg.Hosting.MaxRetries)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.Equal(t, "ghp_env", cfg.Hosting.Token.Value())
}

func TestLoadWithFile_ExplicitZeroKept(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		dir := setupTestHome(t)
		path := filepath.Join(dir, "config.yaml")
		content := "hosting:\n  max_retries: 0\ntelemetry:\n  sample_rate: 0\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		cfg, err := LoadWithFile(path)
		require.NoError(t, err)

		assert.Equal(t, 0, cfg.Hosting.MaxRetries)
		assert.Equal(t, 0.0, cfg.Telemetry.SampleRate)
	})

	t.Run("env", func(t *testing.T) {
		dir := setupTestHome(t)
		t.Setenv("REPOINDEXER_HOSTING_MAX_RETRIES", "0")

		cfg, err := LoadWithFile(filepath.Join(dir, "absent.yaml"))
		require.NoError(t, err)

		assert.Equal(t, 0, cfg.Hosting.MaxRetries)
		assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	})
}

func TestLoadWithFile_RejectsInsecurePermissions(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  workers: 2\n"), 0644))
	require.NoError(t, os.Chmod(path, 0644))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_RejectsPathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)

	_, err := LoadWithFile(filepath.Join(t.TempDir(), "config.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

func TestLoadWithFile_InvalidValueFailsValidation(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vectorstore:\n  provider: pinecone\n"), 0600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported vectorstore provider")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "hosting.token", envKey("REPOINDEXER_HOSTING_TOKEN"))
	assert.Equal(t, "selection.max_size_kb", envKey("REPOINDEXER_SELECTION_MAX_SIZE_KB"))
	assert.Equal(t, "workers", envKey("REPOINDEXER_WORKERS"))
}

func TestSecret_NeverLeaks(t *testing.T) {
	s := Secret("ghp_supersecret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "ghp_supersecret", s.Value())

	out, err := json.Marshal(struct{ Token Secret }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "supersecret")

	assert.False(t, Secret("").IsSet())
	assert.Equal(t, "", Secret("").String())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1500ms")))
	assert.Equal(t, 1500*time.Millisecond, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
