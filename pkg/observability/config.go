package observability

import (
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Config carries the OpenTelemetry settings of one service.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TracingEnabled bool
	MetricsEnabled bool
	// OTLPEndpoint accepts host:port or a http(s):// URL.
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	SamplingRate float64
	PIILevel     string

	TraceBatchTimeout time.Duration
	MetricInterval    time.Duration
	ResourceAttrs     []attribute.KeyValue
}

// DefaultConfig returns development defaults with exporting switched off.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:       serviceName,
		ServiceVersion:    "dev",
		Environment:       "development",
		SamplingRate:      1.0,
		PIILevel:          "hashed",
		TraceBatchTimeout: 5 * time.Second,
		MetricInterval:    30 * time.Second,
	}
}

// endpoint strips the scheme and reports whether TLS should be skipped.
func (c Config) endpoint() (string, bool) {
	endpoint := strings.TrimSpace(c.OTLPEndpoint)
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), false
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), true
	default:
		return endpoint, true
	}
}
