// Package config provides configuration loading for repoindexer.
//
// Configuration is read from an optional YAML file and overridden by
// REPOINDEXER_* environment variables. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// Config holds the complete repoindexer configuration.
type Config struct {
	Hosting     HostingConfig     `koanf:"hosting"`
	Selection   SelectionConfig   `koanf:"selection"`
	Fetch       FetchConfig       `koanf:"fetch"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Chromem     ChromemConfig     `koanf:"chromem"`
	Pipeline    PipelineConfig    `koanf:"pipeline"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// HostingConfig holds code-hosting API client configuration.
type HostingConfig struct {
	// BaseURL is the REST API root. Default: https://api.github.com/
	BaseURL string `koanf:"base_url"`

	// Token is injected as a bearer token when set.
	Token Secret `koanf:"token"`

	// PerPage is the page size for repository enumeration (1-100).
	PerPage int `koanf:"per_page"`

	// Timeout bounds every single API call.
	Timeout time.Duration `koanf:"timeout"`

	// MaxRetries applies to 429, 5xx and network failures only.
	MaxRetries int `koanf:"max_retries"`

	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// Branches is the ordered branch fallback list for tree traversal.
	Branches []string `koanf:"branches"`

	// UseDefaultBranch tries the repository's reported default branch first.
	UseDefaultBranch bool `koanf:"use_default_branch"`
}

// SelectionConfig holds the file selection policy.
type SelectionConfig struct {
	Extensions []string `koanf:"extensions"`
	MaxSizeKB  float64  `koanf:"max_size_kb"`
	// Exclude holds gitignore-style path patterns, e.g. "vendor/".
	Exclude []string `koanf:"exclude"`
}

// FetchConfig holds content fetcher configuration.
type FetchConfig struct {
	// MaxContentKB is the ceiling above which content is logged as oversized.
	// Defaults to Selection.MaxSizeKB.
	MaxContentKB float64 `koanf:"max_content_kb"`

	// DisableRedaction turns off secret redaction before embedding.
	DisableRedaction bool `koanf:"disable_redaction"`
}

// EmbeddingsConfig holds embedding generator configuration.
type EmbeddingsConfig struct {
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	CacheDir  string `koanf:"cache_dir"`
	MaxTokens int    `koanf:"max_tokens"`
	CacheSize int    `koanf:"cache_size"`
	Serialize bool   `koanf:"serialize"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	Provider string `koanf:"provider"`
	// Metadata is "basic" (repository, path) or "rich" (adds details).
	Metadata string `koanf:"metadata"`
}

// QdrantConfig holds Qdrant gRPC configuration.
type QdrantConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	CollectionName string `koanf:"collection_name"`
	UseTLS         bool   `koanf:"use_tls"`
	APIKey         Secret `koanf:"api_key"`
}

// ChromemConfig holds embedded chromem-go configuration.
// An empty Path keeps the index in memory.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// PipelineConfig holds orchestrator configuration.
type PipelineConfig struct {
	Workers int  `koanf:"workers"`
	Enrich  bool `koanf:"enrich"`
}

// LoggingConfig holds the logger level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
// Export is off unless Enabled is set.
type TelemetryConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
	// Protocol is "grpc" or "http/protobuf".
	Protocol        string        `koanf:"protocol"`
	Insecure        bool          `koanf:"insecure"`
	ServiceName     string        `koanf:"service_name"`
	SampleRate      float64       `koanf:"sample_rate"`
	MetricsInterval time.Duration `koanf:"metrics_interval"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultExtensions is the allow-list used when none is configured.
var DefaultExtensions = []string{".py", ".js", ".java", ".cpp", ".c", ".ts", ".rb", ".php"}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Hosting.MaxRetries = defaultMaxRetries
	cfg.Telemetry.SampleRate = defaultSampleRate
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Hosting.BaseURL != "" {
		if _, err := url.Parse(c.Hosting.BaseURL); err != nil {
			return fmt.Errorf("invalid hosting base url: %w", err)
		}
	}
	if c.Hosting.PerPage < 1 || c.Hosting.PerPage > 100 {
		return fmt.Errorf("invalid hosting per_page: %d (must be 1-100)", c.Hosting.PerPage)
	}
	if c.Hosting.Timeout <= 0 {
		return errors.New("hosting timeout must be positive")
	}
	if c.Hosting.MaxRetries < 0 {
		return fmt.Errorf("hosting max_retries cannot be negative: %d", c.Hosting.MaxRetries)
	}
	if len(c.Hosting.Branches) == 0 {
		return errors.New("at least one branch is required")
	}
	if c.Selection.MaxSizeKB <= 0 {
		return fmt.Errorf("selection max_size_kb must be positive: %v", c.Selection.MaxSizeKB)
	}
	for _, ext := range c.Selection.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("invalid extension %q (must start with '.')", ext)
		}
	}
	for _, line := range c.Selection.Exclude {
		if _, err := path.Match(strings.Trim(line, "/!"), "x"); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", line, err)
		}
	}
	switch c.Embeddings.Provider {
	case "fastembed", "tei":
	default:
		return fmt.Errorf("unsupported embeddings provider: %s (supported: fastembed, tei)", c.Embeddings.Provider)
	}
	if c.Embeddings.MaxTokens <= 0 {
		return fmt.Errorf("embeddings max_tokens must be positive: %d", c.Embeddings.MaxTokens)
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", c.VectorStore.Provider)
	}
	switch c.VectorStore.Metadata {
	case "basic", "rich":
	default:
		return fmt.Errorf("unsupported metadata level: %s (supported: basic, rich)", c.VectorStore.Metadata)
	}
	if c.VectorStore.Provider == "qdrant" && (c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535) {
		return fmt.Errorf("invalid qdrant port: %d (must be 1-65535)", c.Qdrant.Port)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline workers must be at least 1: %d", c.Pipeline.Workers)
	}
	if c.Telemetry.Enabled {
		switch c.Telemetry.Protocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("unsupported telemetry protocol: %s (supported: grpc, http/protobuf)", c.Telemetry.Protocol)
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry sample_rate must be between 0 and 1: %v", c.Telemetry.SampleRate)
		}
	}
	return nil
}
