package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/repoindexer/internal/config"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled  bool
	Endpoint string
	// Protocol is "grpc" (default) or "http/protobuf".
	Protocol       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string
	// SampleRate is the head sampling ratio in [0, 1].
	SampleRate float64
	// MetricsInterval is the periodic export interval.
	MetricsInterval time.Duration
	// ShutdownTimeout bounds the final flush.
	ShutdownTimeout time.Duration
}

// ConfigFrom maps the application configuration.
func ConfigFrom(c config.TelemetryConfig, version string) *Config {
	return &Config{
		Enabled:         c.Enabled,
		Endpoint:        c.Endpoint,
		Protocol:        c.Protocol,
		Insecure:        c.Insecure,
		ServiceName:     c.ServiceName,
		ServiceVersion:  version,
		SampleRate:      c.SampleRate,
		MetricsInterval: c.MetricsInterval,
		ShutdownTimeout: c.ShutdownTimeout,
	}
}

// Validate checks configuration for errors. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return errors.New("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return errors.New("service_name is required when telemetry is enabled")
	}
	if c.Insecure && !isLocalEndpoint(c.Endpoint) {
		return fmt.Errorf("insecure export to remote endpoint %s is not allowed", c.Endpoint)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0 and 1, got %v", c.SampleRate)
	}
	if c.MetricsInterval <= 0 {
		return errors.New("metrics interval must be positive")
	}
	return nil
}

// isLocalEndpoint reports whether endpoint names a loopback host.
func isLocalEndpoint(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripScheme removes http:// or https://; the HTTP exporters take host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
