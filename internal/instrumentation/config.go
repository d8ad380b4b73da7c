package instrumentation

import (
	"fmt"
	"time"
)

// Config selects the exporters behind a Provider. It is filled from the
// telemetry section of the application configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// ServiceInstanceID defaults to the hostname when empty.
	ServiceInstanceID string

	// Enabled false yields no-op meters and tracers.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout.
	MetricsExporter string
	// TracingExporter is one of otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port without a scheme.
	OTLPEndpoint string
	// OTLPInsecure sends OTLP over plain HTTP. Traces carry message IDs.
	OTLPInsecure bool

	TraceSamplingRate float64

	// DetailedLabels adds sender domains to message metrics.
	DetailedLabels bool

	Audit AuditConfig
}

// AuditConfig controls the per-message forwarding audit log.
type AuditConfig struct {
	Enabled bool
	// IncludePII logs senders and subjects verbatim instead of hashing
	// senders and omitting subjects.
	IncludePII bool
}

var (
	metricsExporters = map[string]bool{ExporterPrometheus: true, ExporterOTLP: true, ExporterStdout: true}
	tracingExporters = map[string]bool{ExporterOTLP: true, ExporterStdout: true, ExporterNone: true}
)

// Validate rejects unknown exporters, out of range sampling rates and OTLP
// exporters without an endpoint.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}
	if c.MetricsExporter != "" && !metricsExporters[c.MetricsExporter] {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}
	if c.TracingExporter != "" && !tracingExporters[c.TracingExporter] {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}
	if c.OTLPEndpoint == "" {
		if c.TracingExporter == ExporterOTLP {
			return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
		}
		if c.MetricsExporter == ExporterOTLP {
			return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
		}
	}
	return nil
}

// Label values and exporter names.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	ServiceGmail = "gmail"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// DefaultMetricInterval is the push interval of the OTLP and stdout
	// metric exporters.
	DefaultMetricInterval = 10 * time.Second
)
