package observability

import (
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout writes telemetry to stdout, for local development.
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	CompressionGzip = "gzip"
	CompressionNone = "none"

	EnvironmentDevelopment = "development"
)

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	maps.Copy(clone, headers)
	return clone
}

// Config controls trace and metric export. Field tags match the koanf keys
// under the "observability" section of the client configuration.
type Config struct {
	// Enabled turns telemetry export on. When false every provider is a no-op.
	Enabled bool `koanf:"enabled"`

	Service ServiceConfig `koanf:"service"`

	// Environment is reported as deployment.environment.name.
	Environment string `koanf:"environment"`

	Trace   TraceConfig   `koanf:"trace"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ServiceConfig identifies the calling service in exported telemetry.
type ServiceConfig struct {
	// Name is required when observability is enabled.
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// TraceConfig configures span export.
type TraceConfig struct {
	// Enabled defaults to true when observability is enabled.
	Enabled *bool `koanf:"enabled"`

	// Endpoint is "stdout" or an OTLP endpoint. HTTP endpoints carry a scheme,
	// gRPC endpoints are host:port.
	Endpoint string `koanf:"endpoint"`

	Protocol string `koanf:"protocol"`

	// Insecure disables TLS towards the collector.
	Insecure bool `koanf:"insecure"`

	// Headers are sent with every export, e.g. collector API keys.
	Headers map[string]string `koanf:"headers"`

	Compression string `koanf:"compression"`

	Sample SampleConfig `koanf:"sample"`
	Batch  BatchConfig  `koanf:"batch"`
	Export ExportConfig `koanf:"export"`
}

// SampleConfig controls head sampling.
type SampleConfig struct {
	// Rate is the fraction of traces kept, between 0 and 1. nil means 1.
	Rate *float64 `koanf:"rate"`
}

type BatchConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	Size    int           `koanf:"size"`
}

type ExportConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// MetricsConfig configures metric export. Protocol, insecure, headers and
// compression are shared with the trace settings.
type MetricsConfig struct {
	// Enabled defaults to true when observability is enabled.
	Enabled *bool `koanf:"enabled"`

	Endpoint string `koanf:"endpoint"`

	// Interval between periodic exports.
	Interval time.Duration `koanf:"interval"`

	Export ExportConfig `koanf:"export"`
}

// ApplyDefaults fills unset fields. NewProvider calls it on a copy, so callers
// only need it to inspect effective values.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}
	c.applyTraceDefaults()
	c.applyMetricsDefaults()
}

func (c *Config) applyTraceDefaults() {
	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Enabled && c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.Compression == "" {
		c.Trace.Compression = CompressionGzip
	}
	if c.Trace.Sample.Rate == nil {
		c.Trace.Sample.Rate = Float64Ptr(1.0)
	}
	c.Trace.Headers = cloneHeaderMap(c.Trace.Headers)

	dev := c.isDevelopment(c.Trace.Endpoint)
	if c.Trace.Batch.Timeout == 0 {
		c.Trace.Batch.Timeout = 5 * time.Second
		if dev {
			c.Trace.Batch.Timeout = 500 * time.Millisecond
		}
	}
	if c.Trace.Batch.Size == 0 {
		c.Trace.Batch.Size = 512
	}
	if c.Trace.Export.Timeout == 0 {
		c.Trace.Export.Timeout = 30 * time.Second
		if dev {
			c.Trace.Export.Timeout = 10 * time.Second
		}
	}
}

func (c *Config) applyMetricsDefaults() {
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = c.Trace.Endpoint
	}
	if c.Enabled && c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 10 * time.Second
	}
	if c.Metrics.Export.Timeout == 0 {
		c.Metrics.Export.Timeout = 30 * time.Second
		if c.isDevelopment(c.Metrics.Endpoint) {
			c.Metrics.Export.Timeout = 10 * time.Second
		}
	}
}

func (c *Config) isDevelopment(endpoint string) bool {
	return c.Environment == EnvironmentDevelopment || endpoint == EndpointStdout
}

func (c *Config) traceEnabled() bool {
	return c.Trace.Enabled != nil && *c.Trace.Enabled
}

func (c *Config) metricsEnabled() bool {
	return c.Metrics.Enabled != nil && *c.Metrics.Enabled
}

// Validate checks the configuration. A disabled configuration is always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if rate := c.Trace.Sample.Rate; rate != nil && (*rate < 0.0 || *rate > 1.0) {
		return ErrInvalidSampleRate
	}
	if c.Trace.Compression != "" && c.Trace.Compression != CompressionGzip && c.Trace.Compression != CompressionNone {
		return ErrInvalidCompression
	}

	protocol := c.Trace.Protocol
	if protocol == "" {
		protocol = ProtocolHTTP
	}
	if protocol != ProtocolHTTP && protocol != ProtocolGRPC {
		return ErrInvalidProtocol
	}
	if err := validateEndpointFormat(c.Trace.Endpoint, protocol); err != nil {
		return err
	}
	return validateEndpointFormat(c.Metrics.Endpoint, protocol)
}

// validateEndpointFormat requires a scheme for HTTP endpoints and forbids one
// for gRPC endpoints.
func validateEndpointFormat(endpoint, protocol string) error {
	if endpoint == EndpointStdout || endpoint == "" {
		return nil
	}

	hasScheme := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
	if protocol == ProtocolGRPC && hasScheme {
		return ErrInvalidEndpointFormat
	}
	if protocol == ProtocolHTTP && !hasScheme {
		return ErrInvalidEndpointFormat
	}
	return nil
}
